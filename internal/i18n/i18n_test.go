package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "GCSE Mock Exams" {
		t.Errorf("T(AppTitle) = %q, want 'GCSE Mock Exams'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsAnswered", 1)
	if got1 != "1 question answered." {
		t.Errorf("Tp(QuestionsAnswered, 1) = %q", got1)
	}

	got5 := Tp(ctx, "QuestionsAnswered", 5)
	if got5 != "5 questions answered." {
		t.Errorf("Tp(QuestionsAnswered, 5) = %q", got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ErrSessionState", map[string]any{"State": "submitting"})
	if got != "This action is not available while the paper is submitting." {
		t.Errorf("Td(ErrSessionState) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestGatewayMessage(t *testing.T) {
	ctx := initLang(t, "en")

	tests := []struct {
		code string
		want string
	}{
		{"rate_limited", "The marking service is busy. Please wait a minute and submit again."},
		{"unauthorized", "The marking service rejected our credentials. Please tell your teacher."},
		{"something_else", "The marking service is unavailable right now. Your answers are saved; please try again shortly."},
	}
	for _, tt := range tests {
		if got := GatewayMessage(ctx, tt.code); got != tt.want {
			t.Errorf("GatewayMessage(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestMiddlewareFallsBackToDefault(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrNotFound")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Not found." {
		t.Errorf("expected English fallback, got %q", got)
	}
}
