package inject

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEmailContent(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		text        string
		wantSubject string
		wantBody    string
	}{
		{"labelled", "Subject: Meeting\n\nHi there", "Meeting", "Hi there"},
		{"labelled lowercase with body label", "subject: Lunch\nBody: See you at noon\nBest", "Lunch", "See you at noon\nBest"},
		{"labelled crlf", "Subject: Update\r\n\r\nDear team,\r\nAll good.", "Update", "Dear team,\nAll good."},
		{"unlabelled multi-line", "Quarterly numbers\nRevenue grew.\nCosts fell.", "Quarterly numbers", "Revenue grew.\nCosts fell."},
		{"single line", "  Thanks, will do.  ", "", "Thanks, will do."},
		{"empty", "   ", "", ""},
		{"subject only", "Subject: Ping", "Ping", ""},
	}
	for _, tc := range cases {
		subject, body := ParseEmailContent(tc.text)
		assert.Equal(t, tc.wantSubject, subject, tc.name)
		assert.Equal(t, tc.wantBody, body, tc.name)
	}
}

func TestClassifyFields(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("x", 51)
	cases := []struct {
		name   string
		fields []FieldInfo
		want   Classification
	}{
		{
			name: "hint tokens",
			fields: []FieldInfo{
				{Hint: "To"},
				{Hint: "Subject"},
				{Hint: "Compose email"},
			},
			want: Classification{Subject: 1, Body: 2},
		},
		{
			name: "view ids",
			fields: []FieldInfo{
				{ViewID: "com.google.android.gm:id/subject"},
				{ViewID: "com.google.android.gm:id/body"},
			},
			want: Classification{Subject: 0, Body: 1},
		},
		{
			name: "label beats class beats length",
			fields: []FieldInfo{
				{Text: long},
				{ClassName: "com.google.android.gm.ComposeEditText"},
				{Description: "Compose"},
			},
			want: Classification{Subject: -1, Body: 2},
		},
		{
			name: "class beats length",
			fields: []FieldInfo{
				{Text: long},
				{ClassName: "ComposeEditText"},
			},
			want: Classification{Subject: -1, Body: 1},
		},
		{
			name: "long subject stays subject",
			fields: []FieldInfo{
				{Hint: "Subject", Text: long},
			},
			want: Classification{Subject: 0, Body: -1},
		},
		{
			name: "first subject wins",
			fields: []FieldInfo{
				{Hint: "subject"},
				{Description: "Subject line"},
			},
			want: Classification{Subject: 0, Body: -1},
		},
		{
			name:   "nothing classifiable",
			fields: []FieldInfo{{Hint: "To"}, {Text: "short"}},
			want:   Classification{Subject: -1, Body: -1},
		},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyFields(tc.fields), tc.name)
	}
	assert.False(t, ClassifyFields(nil).Found())
}
