package filter

import "testing"

func TestParseRuleBasic(t *testing.T) {
	r, err := ParseRule("- *.o")
	if err != nil {
		t.Fatal(err)
	}
	if r.Action != Exclude || r.Pattern != "*.o" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRuleAnchoredDirectoryOnly(t *testing.T) {
	r, err := ParseRule("+ /build/")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Anchored || !r.DirectoryOnly || r.Pattern != "build" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRuleWords(t *testing.T) {
	r, err := ParseRule("protect /etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if r.Action != Protect || !r.Anchored || r.Pattern != "etc/passwd" {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRuleClear(t *testing.T) {
	r, err := ParseRule("!")
	if err != nil {
		t.Fatal(err)
	}
	if r.Action != Clear {
		t.Fatalf("got %+v", r)
	}
}

func TestParseRuleRejectsEmptyPattern(t *testing.T) {
	if _, err := ParseRule("-"); err == nil {
		t.Fatal("expected an error for a rule with no pattern")
	}
}

func TestDecideFirstMatchWins(t *testing.T) {
	rules := []Rule{
		{Action: Include, Pattern: "keep.txt", Scope: Both},
		{Action: Exclude, Pattern: "*.txt", Scope: Both},
	}
	e := New(rules, Both, "")
	if got := e.Decide("keep.txt", false); got != Include {
		t.Errorf("Decide(keep.txt) = %v, want Include", got)
	}
	if got := e.Decide("other.txt", false); got != Exclude {
		t.Errorf("Decide(other.txt) = %v, want Exclude", got)
	}
}

func TestDecideDefaultIncludes(t *testing.T) {
	e := New([]Rule{{Action: Exclude, Pattern: "*.o"}}, Both, "")
	if got := e.Decide("main.go", false); got != Include {
		t.Errorf("Decide(main.go) = %v, want Include", got)
	}
}

func TestDecideAnchored(t *testing.T) {
	rules := []Rule{{Action: Exclude, Pattern: "build", Anchored: true}}
	e := New(rules, Both, "")
	if got := e.Decide("build", false); got != Exclude {
		t.Errorf("Decide(build) = %v, want Exclude", got)
	}
	if got := e.Decide("sub/build", false); got != Include {
		t.Errorf("anchored pattern should not match nested sub/build, got %v", got)
	}
}

func TestDecideNonAnchoredMatchesAnyDepth(t *testing.T) {
	rules := []Rule{{Action: Exclude, Pattern: "*.o"}}
	e := New(rules, Both, "")
	if got := e.Decide("sub/dir/main.o", false); got != Exclude {
		t.Errorf("Decide(sub/dir/main.o) = %v, want Exclude", got)
	}
}

func TestDecideDirectoryOnly(t *testing.T) {
	rules := []Rule{{Action: Exclude, Pattern: "tmp", DirectoryOnly: true}}
	e := New(rules, Both, "")
	if got := e.Decide("tmp", false); got != Include {
		t.Errorf("directory-only rule should not match a plain file named tmp, got %v", got)
	}
	if got := e.Decide("tmp", true); got != Exclude {
		t.Errorf("directory-only rule should match a directory named tmp, got %v", got)
	}
}

func TestDecideRecursiveGlob(t *testing.T) {
	rules := []Rule{{Action: Exclude, Pattern: "**/node_modules/**", Anchored: true}}
	e := New(rules, Both, "")
	if got := e.Decide("pkg/a/node_modules/lib/x.js", false); got != Exclude {
		t.Errorf("Decide(node_modules path) = %v, want Exclude", got)
	}
}

func TestDecideScope(t *testing.T) {
	rules := []Rule{{Action: Exclude, Pattern: "*.log", Scope: Sender}}
	senderSide := New(rules, Sender, "")
	receiverSide := New(rules, Receiver, "")
	if got := senderSide.Decide("a.log", false); got != Exclude {
		t.Errorf("sender-scoped rule should apply on the sender side, got %v", got)
	}
	if got := receiverSide.Decide("a.log", false); got != Include {
		t.Errorf("sender-scoped rule should not apply on the receiver side, got %v", got)
	}
}

func TestCompileClearDropsPriorRules(t *testing.T) {
	rules := []Rule{
		{Action: Exclude, Pattern: "*.tmp"},
		{Action: Clear},
		{Action: Exclude, Pattern: "*.bak"},
	}
	compiled := Compile(rules)
	if len(compiled) != 1 || compiled[0].Pattern != "*.bak" {
		t.Fatalf("got %+v", compiled)
	}
}

func TestMergeFilePushPop(t *testing.T) {
	e := New(nil, Both, ".rsync-filter")
	if err := e.PushMergeFile("sub", "- *.secret\n"); err != nil {
		t.Fatal(err)
	}
	if got := e.Decide("sub/a.secret", false); got != Exclude {
		t.Errorf("merged rule should apply while in scope, got %v", got)
	}
	e.PopMergeFile("sub")
	if got := e.Decide("sub/a.secret", false); got != Include {
		t.Errorf("merged rule should no longer apply after popping, got %v", got)
	}
}
