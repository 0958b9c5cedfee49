package proctable

import (
	"strings"
	"testing"
)

func TestRecord_SetGetName(t *testing.T) {
	var r Record
	r.SetName("sshd")
	if got := r.GetName(); got != "sshd" {
		t.Errorf("GetName() = %q, want sshd", got)
	}
}

func TestRecord_SetNameTruncates(t *testing.T) {
	var r Record
	long := strings.Repeat("x", 200)
	r.SetName(long)
	got := r.GetName()
	if len(got) != len(r.Name)-1 {
		t.Errorf("GetName() length = %d, want %d", len(got), len(r.Name)-1)
	}
}

func TestRecord_CmdlineRoundTrip(t *testing.T) {
	var r Record
	r.SetCmdline("/usr/bin/sshd -D -oLogLevel=ERROR")
	if got := r.GetCmdline(); got != "/usr/bin/sshd -D -oLogLevel=ERROR" {
		t.Errorf("GetCmdline() = %q", got)
	}
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		Running:  "Running",
		Sleeping: "Sleeping",
		Stopped:  "Stopped",
		Zombie:   "Zombie",
		Dead:     "Dead",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
