package hr

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	maxTags   = 10
	minWeight = 10
	maxWeight = 100
)

// Agents генерирует теги и тестовые вопросы для профессий.
// Без API ключа работает детерминированный fallback по ключевым словам.
type Agents struct {
	client *openai.Client
	model  string
}

// NewAgents создаёт генератор контента
func NewAgents(apiKey, model string) *Agents {
	if model == "" {
		model = openai.ChatModelGPT4o
	}

	a := &Agents{model: model}
	if apiKey != "" {
		client := openai.NewClient(option.WithAPIKey(apiKey))
		a.client = &client
		log.Printf("[HR] content agents initialized: model=%s", model)
	} else {
		log.Printf("[HR] no API key, content agents use fallback generation")
	}
	return a
}

// GenerateTags генерирует теги с весами для профессии
func (a *Agents) GenerateTags(ctx context.Context, p *Profession) (map[string]int, error) {
	if a.client == nil {
		return validateTags(fallbackTags(p)), nil
	}

	prompt := fmt.Sprintf(
		"Профессия: %s\nСпециализация: %s\nОтдел: %s\n\n"+
			"Сгенерируй до %d ключевых навыков для проверки кандидата. "+
			"Ответ строго в JSON: {\"навык\": вес}, вес от %d до %d.",
		p.RealName, p.Specialization, p.Department, maxTags, minWeight, maxWeight)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Ты эксперт по профессиям и навыкам. Генерируешь точные теги с весами для проверки кандидатов."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Printf("[HR] tag generation failed, using fallback: %v", err)
		return validateTags(fallbackTags(p)), nil
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	tags, err := parseTagsJSON(text)
	if err != nil {
		log.Printf("[HR] failed to parse tags response, using fallback: %v", err)
		return validateTags(fallbackTags(p)), nil
	}
	return validateTags(tags), nil
}

// GenerateQuestions генерирует тестовые вопросы по тегам профессии.
// Количество вопросов на тег растёт с весом тега.
func (a *Agents) GenerateQuestions(ctx context.Context, p *Profession) ([]Question, error) {
	if len(p.Tags) == 0 {
		return nil, fmt.Errorf("profession has no tags")
	}

	if a.client == nil {
		return fallbackQuestions(p), nil
	}

	tagList := make([]string, 0, len(p.Tags))
	for tag, weight := range p.Tags {
		tagList = append(tagList, fmt.Sprintf("%s (%d%%)", tag, weight))
	}
	sort.Strings(tagList)

	prompt := fmt.Sprintf(
		"Профессия: %s (%s)\nНавыки: %s\n\n"+
			"Сгенерируй по 1-3 вопроса на навык пропорционально весу. "+
			"Ответ строго в JSON: [{\"tag\": \"...\", \"text\": \"...\", \"difficulty\": \"easy|medium|hard\"}].",
		p.RealName, p.Specialization, strings.Join(tagList, ", "))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Ты составляешь вопросы для собеседований. Вопросы конкретные, проверяемые, без воды."),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		log.Printf("[HR] question generation failed, using fallback: %v", err)
		return fallbackQuestions(p), nil
	}

	text := ""
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}

	questions, err := parseQuestionsJSON(text)
	if err != nil || len(questions) == 0 {
		log.Printf("[HR] failed to parse questions response, using fallback: %v", err)
		return fallbackQuestions(p), nil
	}
	return questions, nil
}

// parseTagsJSON извлекает JSON объект из ответа модели
func parseTagsJSON(text string) (map[string]int, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var tags map[string]int
	if err := json.Unmarshal([]byte(text[start:end+1]), &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// parseQuestionsJSON извлекает JSON массив из ответа модели
func parseQuestionsJSON(text string) ([]Question, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var questions []Question
	if err := json.Unmarshal([]byte(text[start:end+1]), &questions); err != nil {
		return nil, err
	}
	return questions, nil
}

// validateTags обрезает количество тегов и зажимает веса в допустимый диапазон
func validateTags(tags map[string]int) map[string]int {
	type tagWeight struct {
		tag    string
		weight int
	}
	sorted := make([]tagWeight, 0, len(tags))
	for tag, weight := range tags {
		if tag == "" {
			continue
		}
		if weight < minWeight {
			weight = minWeight
		}
		if weight > maxWeight {
			weight = maxWeight
		}
		sorted = append(sorted, tagWeight{tag, weight})
	}

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].weight != sorted[j].weight {
			return sorted[i].weight > sorted[j].weight
		}
		return sorted[i].tag < sorted[j].tag
	})
	if len(sorted) > maxTags {
		sorted = sorted[:maxTags]
	}

	result := make(map[string]int, len(sorted))
	for _, tw := range sorted {
		result[tw.tag] = tw.weight
	}
	return result
}

// fallbackTags детерминированная генерация тегов по ключевым словам
func fallbackTags(p *Profession) map[string]int {
	name := strings.ToLower(p.RealName + " " + p.Specialization)

	switch {
	case containsAny(name, "developer", "разработчик", "programmer", "инженер"):
		return map[string]int{
			"Programming":     90,
			"Git":             85,
			"Problem Solving": 80,
			"Code Review":     75,
			"Testing":         70,
		}
	case containsAny(name, "analyst", "аналитик", "data"):
		return map[string]int{
			"Data Analysis":     90,
			"SQL":               85,
			"Excel":             75,
			"Reporting":         70,
			"Critical Thinking": 65,
		}
	case containsAny(name, "manager", "менеджер", "руководитель"):
		return map[string]int{
			"Leadership":      90,
			"Communication":   85,
			"Planning":        80,
			"Negotiation":     70,
			"Time Management": 65,
		}
	default:
		return map[string]int{
			"Communication":       80,
			"Responsibility":      75,
			"Teamwork":            70,
			"Problem Solving":     65,
			"Attention to Detail": 60,
		}
	}
}

// fallbackQuestions шаблонные вопросы по тегам, по вопросу на тег
func fallbackQuestions(p *Profession) []Question {
	tags := make([]string, 0, len(p.Tags))
	for tag := range p.Tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	questions := make([]Question, 0, len(tags))
	for _, tag := range tags {
		difficulty := "easy"
		switch {
		case p.Tags[tag] >= 85:
			difficulty = "hard"
		case p.Tags[tag] >= 70:
			difficulty = "medium"
		}
		questions = append(questions, Question{
			Tag:        tag,
			Text:       fmt.Sprintf("Расскажите о вашем опыте в области «%s» на позиции %s.", tag, p.RealName),
			Difficulty: difficulty,
		})
	}
	return questions
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
