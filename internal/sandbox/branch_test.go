package sandbox

import "testing"

func TestBranchName(t *testing.T) {
	tests := []struct {
		name    string
		jobID   string
		title   string
		attempt int
		want    string
	}{
		{"first attempt", "job1", "Fix login bug", 1, "contrib/job1-fix-login-bug"},
		{"retry gets suffix", "job1", "Fix login bug", 2, "contrib/job1-fix-login-bug-r2"},
		{"third attempt", "job1", "Fix login bug", 3, "contrib/job1-fix-login-bug-r3"},
		{"empty title", "job2", "", 1, "contrib/job2"},
		{"special characters stripped", "job3", "Add @#$ support!", 1, "contrib/job3-add--support"},
		{"long title truncated", "job4", "this is a very long title that keeps going and going", 1, "contrib/job4-this-is-a-very-long-title-that"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BranchName("contrib", tt.jobID, tt.title, tt.attempt)
			if got != tt.want {
				t.Errorf("BranchName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"UPPER case", "upper-case"},
		{"trailing dash ", "trailing-dash"},
		{"", ""},
		{"already-slugged", "already-slugged"},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.expected {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
