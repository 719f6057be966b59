package hr

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func createTest(t *testing.T, s *Store) *Profession {
	t.Helper()
	p, err := s.Create(RoleHRHead, "hr@corp", "Инженер-программист", "Backend", "IT")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestStore_Create(t *testing.T) {
	s := newTestStore(t)

	p := createTest(t, s)
	if p.Status != StatusCreatedByHR {
		t.Errorf("Status = %s, want %s", p.Status, StatusCreatedByHR)
	}
	if p.ID == "" {
		t.Error("empty ID")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}

	// Начальник отдела создавать не может
	if _, err := s.Create(RoleHead, "head@corp", "Тестировщик", "", "QA"); err == nil {
		t.Error("head_admin must not create professions")
	}

	// Имя обязательно
	if _, err := s.Create(RoleHRHead, "hr@corp", "", "", ""); err == nil {
		t.Error("empty name must fail")
	}
}

func TestStore_ApprovalRoute(t *testing.T) {
	s := newTestStore(t)
	p := createTest(t, s)

	// Утверждение до генерации тегов запрещено
	if _, err := s.Approve(RoleHead, p.ID); err == nil {
		t.Error("approve before tags must fail")
	}

	tagged, err := s.SetTags(p.ID, map[string]int{"Go": 90, "SQL": 70})
	if err != nil {
		t.Fatalf("SetTags: %v", err)
	}
	if tagged.Status != StatusTagsGenerated {
		t.Errorf("Status = %s, want %s", tagged.Status, StatusTagsGenerated)
	}

	// HR директор утверждать не может
	if _, err := s.Approve(RoleHRHead, p.ID); err == nil {
		t.Error("hr_head_admin must not approve")
	}

	approved, err := s.Approve(RoleHead, p.ID)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != StatusApprovedByHead {
		t.Errorf("Status = %s, want %s", approved.Status, StatusApprovedByHead)
	}

	// Вопросы генерирует только super_admin
	questions := []Question{{Tag: "Go", Text: "Что такое горутина?", Difficulty: "medium"}}
	if _, err := s.SetQuestions(RoleHead, p.ID, questions); err == nil {
		t.Error("head_admin must not manage questions")
	}
	withQuestions, err := s.SetQuestions(RoleSuperAdmin, p.ID, questions)
	if err != nil {
		t.Fatalf("SetQuestions: %v", err)
	}
	if withQuestions.Status != StatusQuestionsGenerated {
		t.Errorf("Status = %s, want %s", withQuestions.Status, StatusQuestionsGenerated)
	}

	active, err := s.Activate(RoleSuperAdmin, p.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if active.Status != StatusActive {
		t.Errorf("Status = %s, want %s", active.Status, StatusActive)
	}

	// Активная профессия не возвращается на доработку
	if _, err := s.ReturnToHR(RoleHead, p.ID, "поздно"); err == nil {
		t.Error("return after activation must fail")
	}
}

func TestStore_ReturnCycle(t *testing.T) {
	s := newTestStore(t)
	p := createTest(t, s)

	if _, err := s.SetTags(p.ID, map[string]int{"Go": 90}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	// Перегенерация тегов до утверждения допустима
	regen, err := s.SetTags(p.ID, map[string]int{"Go": 90, "Kubernetes": 70})
	if err != nil {
		t.Fatalf("SetTags regenerate: %v", err)
	}
	if regen.Status != StatusTagsGenerated {
		t.Errorf("Status = %s, want %s", regen.Status, StatusTagsGenerated)
	}

	returned, err := s.ReturnToHR(RoleHead, p.ID, "уточните специализацию")
	if err != nil {
		t.Fatalf("ReturnToHR: %v", err)
	}
	if returned.Status != StatusReturnedToHR {
		t.Errorf("Status = %s, want %s", returned.Status, StatusReturnedToHR)
	}
	if returned.ReturnComment != "уточните специализацию" {
		t.Errorf("ReturnComment = %q", returned.ReturnComment)
	}

	// Повторная генерация тегов очищает комментарий
	retagged, err := s.SetTags(p.ID, map[string]int{"Go": 95, "Docker": 80})
	if err != nil {
		t.Fatalf("SetTags after return: %v", err)
	}
	if retagged.Status != StatusTagsGenerated {
		t.Errorf("Status = %s, want %s", retagged.Status, StatusTagsGenerated)
	}
	if retagged.ReturnComment != "" {
		t.Errorf("ReturnComment = %q, want empty", retagged.ReturnComment)
	}
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	p, err := s.Create(RoleSuperAdmin, "admin", "Аналитик данных", "BI", "Analytics")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.SetTags(p.ID, map[string]int{"SQL": 85}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	// Повторное открытие читает тот же файл
	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(p.ID)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.RealName != "Аналитик данных" || got.Status != StatusTagsGenerated {
		t.Errorf("reloaded profession: %+v", got)
	}
	if got.Tags["SQL"] != 85 {
		t.Errorf("Tags = %v", got.Tags)
	}
}

func TestStore_GetUnknown(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("missing"); err == nil {
		t.Error("unknown id must fail")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusCreatedByHR, StatusTagsGenerated, true},
		{StatusTagsGenerated, StatusTagsGenerated, true},
		{StatusTagsGenerated, StatusApprovedByHead, true},
		{StatusTagsGenerated, StatusReturnedToHR, true},
		{StatusReturnedToHR, StatusTagsGenerated, true},
		{StatusApprovedByHead, StatusQuestionsGenerated, true},
		{StatusQuestionsGenerated, StatusActive, true},
		{StatusCreatedByHR, StatusActive, false},
		{StatusActive, StatusTagsGenerated, false},
		{StatusApprovedByHead, StatusReturnedToHR, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
