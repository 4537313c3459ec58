package validation

import (
	"strings"
	"testing"

	"timeout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signupForm struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,password"`
}

type postForm struct {
	Content string             `json:"content" validate:"notblank,max=5000"`
	Privacy models.PostPrivacy `json:"privacy" validate:"privacy"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(signupForm{Username: "alice", Email: "alice@example.com", Password: "studyhard42"}))
	assert.NoError(t, Struct(postForm{Content: "hello", Privacy: models.PrivacyPublic}))
}

func TestStruct_ReportsFieldsByJSONName(t *testing.T) {
	err := Struct(signupForm{Username: "a b", Email: "nope", Password: "short"})
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeValidation))

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	fields, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, fields, "username")
	assert.Equal(t, "invalid email format", fields["email"])
	assert.Equal(t, "password must be at least 8 characters long", fields["password"])
}

func TestStruct_CustomTags(t *testing.T) {
	tests := []struct {
		name    string
		form    postForm
		wantMsg string
	}{
		{"blank content", postForm{Content: "   ", Privacy: models.PrivacyPublic}, "content is required"},
		{"too long", postForm{Content: strings.Repeat("x", 5001), Privacy: models.PrivacyPublic}, "content must be at most 5000 characters"},
		{"unknown privacy", postForm{Content: "hi", Privacy: "friends"}, `privacy has an unknown value "friends"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.form)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}
