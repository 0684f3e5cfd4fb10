package scheduler

import "testing"

func TestTaskQueueOrdering(t *testing.T) {
	q := newTaskQueue(10)
	mk := func(name string, p Priority) *task { return &task{info: TaskInfo{Name: name, Priority: p}} }
	for _, tk := range []*task{mk("l1", PriorityLow), mk("c", PriorityCritical), mk("m", PriorityMedium), mk("l2", PriorityLow), mk("h", PriorityHigh)} {
		if err := q.push(tk); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	var got []string
	for tk := q.pop(); tk != nil; tk = q.pop() {
		got = append(got, tk.info.Name)
	}
	want := []string{"c", "h", "m", "l1", "l2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestParsePriority(t *testing.T) {
	cases := map[string]Priority{"low": PriorityLow, "HIGH": PriorityHigh, " critical ": PriorityCritical, "": PriorityMedium}
	for in, want := range cases {
		got, err := ParsePriority(in)
		if err != nil || got != want {
			t.Fatalf("ParsePriority(%q)=%v,%v want %v", in, got, err, want)
		}
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatalf("expected error")
	}
}
