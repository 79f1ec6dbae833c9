package detail

import (
	"strings"
	"testing"

	"github.com/research-assistant/monitor/internal/client"
)

func TestViewNilPaper(t *testing.T) {
	if v := (Model{}).View(); v != "" {
		t.Errorf("expected empty view, got %q", v)
	}
}

func TestViewPaper(t *testing.T) {
	m := New(client.Paper{
		ArxivID:         "2312.10997",
		Title:           "Retrieval-Augmented Generation for Large Language Models: A Survey",
		Authors:         []string{"Gao", "Xiong", "Gao", "Jia", "Pan"},
		Published:       "2023-12-18T13:05:47Z",
		PrimaryCategory: "cs.CL",
		Categories:      []string{"cs.CL", "cs.AI"},
		Abstract:        "Large language models\n  showcase impressive capabilities.",
	})
	v := m.View()

	for _, want := range []string{"2312.10997", "Gao, Xiong, Gao et al.", "2023-12-18", "cs.CL", "cs.CL, cs.AI", "showcase impressive"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
	if strings.Contains(v, "13:05:47") {
		t.Error("published should be shown as a date")
	}
}

func TestAuthorList(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"A"}, "A"},
		{[]string{"A", "B", "C"}, "A, B, C"},
		{[]string{"A", "B", "C", "D"}, "A, B, C et al."},
	}
	for _, tt := range tests {
		if got := authorList(tt.in); got != tt.want {
			t.Errorf("authorList(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
