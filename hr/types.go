// Package hr реализует рабочий процесс HR: профессии с тегами и
// вопросами, маршрут согласования HR -> начальник отдела
package hr

import "time"

// Role роль пользователя
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleHRHead     Role = "hr_head_admin"
	RoleHead       Role = "head_admin"
)

// Status статус профессии в маршруте согласования
type Status string

const (
	StatusCreatedByHR        Status = "created_by_hr"
	StatusTagsGenerated      Status = "tags_generated"
	StatusReturnedToHR       Status = "returned_to_hr"
	StatusApprovedByHead     Status = "approved_by_head"
	StatusQuestionsGenerated Status = "questions_generated"
	StatusActive             Status = "active"
)

// statusTransitions допустимые переходы статусов.
// Теги можно перегенерировать до утверждения начальником.
var statusTransitions = map[Status][]Status{
	StatusCreatedByHR:        {StatusTagsGenerated},
	StatusTagsGenerated:      {StatusTagsGenerated, StatusApprovedByHead, StatusReturnedToHR},
	StatusReturnedToHR:       {StatusTagsGenerated},
	StatusApprovedByHead:     {StatusQuestionsGenerated},
	StatusQuestionsGenerated: {StatusActive},
}

// CanTransition проверяет допустимость перехода статуса
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanCreateProfessions проверяет право создания профессий
func CanCreateProfessions(role Role) bool {
	return role == RoleSuperAdmin || role == RoleHRHead
}

// CanApproveProfessions проверяет право утверждения и возврата
func CanApproveProfessions(role Role) bool {
	return role == RoleSuperAdmin || role == RoleHead
}

// CanManageQuestions проверяет право генерации и просмотра вопросов
func CanManageQuestions(role Role) bool {
	return role == RoleSuperAdmin
}

// Question тестовый вопрос для проверки кандидата по тегу
type Question struct {
	Tag        string `json:"tag"`
	Text       string `json:"text"`
	Difficulty string `json:"difficulty"` // easy, medium, hard
}

// Profession профессия с тегами и вопросами
type Profession struct {
	ID             string         `json:"id"`
	RealName       string         `json:"real_name"`
	Specialization string         `json:"specialization"`
	Department     string         `json:"department"`
	Status         Status         `json:"status"`
	Tags           map[string]int `json:"tags,omitempty"` // тег -> вес 10-100
	Questions      []Question     `json:"questions,omitempty"`
	ReturnComment  string         `json:"return_comment,omitempty"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
