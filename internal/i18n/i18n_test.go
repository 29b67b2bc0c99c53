package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLocalizer(context.Background(), NewLocalizer(lang))
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		lang string
		id   string
		want string
	}{
		{"en", "AppTitle", "Chemistry Trainer"},
		{"ru", "AppTitle", "Тренажёр по химии"},
		{"en", "ErrWorkClosed", "This work is already finished."},
		{"ru", "ErrWorkClosed", "Эта работа уже завершена."},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			ctx := initLang(t, tt.lang)
			if got := T(ctx, tt.id); got != tt.want {
				t.Errorf("T(%s) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestLanguages(t *testing.T) {
	initLang(t, "en")
	langs := Languages()
	for _, want := range []string{"en", "ru"} {
		if !slices.Contains(langs, want) {
			t.Errorf("language %s not loaded: %v", want, langs)
		}
	}
}

func TestPluralTranslation(t *testing.T) {
	tests := []struct {
		lang  string
		count int
		want  string
	}{
		{"en", 1, "1 skipped question is waiting."},
		{"en", 3, "3 skipped questions are waiting."},
		{"ru", 1, "Остался 1 пропущенный вопрос."},
		{"ru", 3, "Осталось 3 пропущенных вопроса."},
		{"ru", 5, "Осталось 5 пропущенных вопросов."},
	}
	for _, tt := range tests {
		ctx := initLang(t, tt.lang)
		if got := Tp(ctx, "SkippedLeft", tt.count, nil); got != tt.want {
			t.Errorf("%s Tp(SkippedLeft, %d) = %q, want %q", tt.lang, tt.count, got, tt.want)
		}
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "QuestionProgress", map[string]any{"Position": 3, "Total": 20})
	if got != "Question 3 of 20" {
		t.Errorf("Td(QuestionProgress) = %q, want 'Question 3 of 20'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitBadLanguage(t *testing.T) {
	if err := Init("not a language!"); err == nil {
		t.Error("expected error for malformed language tag")
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	initLang(t, "en")

	tests := []struct {
		accept string
		want   string
	}{
		{"", "Chemistry Trainer"},
		{"ru-RU,ru;q=0.9,en;q=0.8", "Тренажёр по химии"},
		{"de", "Chemistry Trainer"},
	}
	for _, tt := range tests {
		var got string
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = T(r.Context(), "AppTitle")
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.accept != "" {
			req.Header.Set("Accept-Language", tt.accept)
		}
		h.ServeHTTP(httptest.NewRecorder(), req)
		if got != tt.want {
			t.Errorf("Accept-Language %q: got %q, want %q", tt.accept, got, tt.want)
		}
	}
}
