package stubs

import (
	"context"
	"errors"
	"testing"
	"time"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

func TestMockDB_SurveyLifecycle(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	id, err := db.CreateSurvey(ctx, "team mood")
	if err != nil {
		t.Fatalf("Failed to create survey: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero survey ID")
	}

	exists, err := db.SurveyExists(ctx, "team mood")
	if err != nil {
		t.Fatalf("Failed to check survey existence: %v", err)
	}
	if !exists {
		t.Error("Expected 'team mood' to exist")
	}

	if err := db.RenameSurvey(ctx, id, "weekly mood"); err != nil {
		t.Fatalf("Failed to rename survey: %v", err)
	}
	survey, err := db.GetSurvey(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get survey: %v", err)
	}
	if survey.Name != "weekly mood" {
		t.Errorf("Expected renamed survey, got %q", survey.Name)
	}

	if err := db.DeleteSurvey(ctx, id); err != nil {
		t.Fatalf("Failed to delete survey: %v", err)
	}
	if _, err := db.GetSurvey(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestMockDB_QuestionsFollowSurveyDelete(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	id, err := db.CreateSurvey(ctx, "onboarding")
	if err != nil {
		t.Fatalf("Failed to create survey: %v", err)
	}
	if _, err := db.AddQuestion(ctx, id, "First name?", models.TextAnswer, nil); err != nil {
		t.Fatalf("Failed to add question: %v", err)
	}
	if _, err := db.AddQuestion(ctx, id, "Team?", models.SingleChoice, []string{"Red", "Blue"}); err != nil {
		t.Fatalf("Failed to add question: %v", err)
	}

	questions, err := db.ListQuestions(ctx, id)
	if err != nil {
		t.Fatalf("Failed to list questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("Expected 2 questions, got %d", len(questions))
	}
	if questions[0].Text != "First name?" {
		t.Errorf("Expected insertion order, got %q first", questions[0].Text)
	}

	if err := db.DeleteSurvey(ctx, id); err != nil {
		t.Fatalf("Failed to delete survey: %v", err)
	}
	questions, err = db.ListQuestions(ctx, id)
	if err != nil {
		t.Fatalf("Failed to list questions: %v", err)
	}
	if len(questions) != 0 {
		t.Errorf("Expected questions gone with the survey, got %d", len(questions))
	}
}

func TestMockDB_ScheduledSurveys(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	id, err := db.CreateSurvey(ctx, "planned")
	if err != nil {
		t.Fatalf("Failed to create survey: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	if err := db.ScheduleSurvey(ctx, id, &past); err != nil {
		t.Fatalf("Failed to schedule survey: %v", err)
	}

	due, err := db.ListDueScheduled(ctx, time.Now())
	if err != nil {
		t.Fatalf("Failed to list due surveys: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("Expected survey %d due, got %v", id, due)
	}

	if err := db.ScheduleSurvey(ctx, id, nil); err != nil {
		t.Fatalf("Failed to clear schedule: %v", err)
	}
	due, err = db.ListDueScheduled(ctx, time.Now())
	if err != nil {
		t.Fatalf("Failed to list due surveys: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Expected no due surveys after clearing, got %d", len(due))
	}
}

func TestMockDB_PendingCaptcha(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if err := db.AddPendingCaptcha(ctx, 7, 100); err != nil {
		t.Fatalf("Failed to add pending captcha: %v", err)
	}
	if err := db.AddPendingCaptcha(ctx, 7, 200); err != nil {
		t.Fatalf("Failed to add pending captcha: %v", err)
	}

	pending, err := db.IsPendingCaptcha(ctx, 7, 100)
	if err != nil {
		t.Fatalf("Failed to check pending captcha: %v", err)
	}
	if !pending {
		t.Error("Expected user 7 pending in chat 100")
	}

	chats, err := db.PendingChatsForUser(ctx, 7)
	if err != nil {
		t.Fatalf("Failed to list pending chats: %v", err)
	}
	if len(chats) != 2 || chats[0] != 100 || chats[1] != 200 {
		t.Errorf("Expected chats [100 200], got %v", chats)
	}

	if err := db.RemovePendingCaptcha(ctx, 7, 100); err != nil {
		t.Fatalf("Failed to remove pending captcha: %v", err)
	}
	pending, err = db.IsPendingCaptcha(ctx, 7, 100)
	if err != nil {
		t.Fatalf("Failed to check pending captcha: %v", err)
	}
	if pending {
		t.Error("Expected pending captcha removed")
	}
}
