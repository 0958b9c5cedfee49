//go:build linux

package sampler

import (
	"strings"
	"testing"

	"github.com/nhdewitt/psx/internal/proctable"
)

func TestParseMemInfoFrom(t *testing.T) {
	input := `
MemTotal:       32806268 kB
MemFree:        18263152 kB
MemAvailable:   27608292 kB
`
	got, err := parseMemInfoFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseMemInfoFrom: %v", err)
	}
	want := uint64(32806268 * 1024)
	if got != want {
		t.Errorf("parseMemInfoFrom = %d, want %d", got, want)
	}
}

func TestParseMemInfoFrom_NotFound(t *testing.T) {
	_, err := parseMemInfoFrom(strings.NewReader("MemFree: 100 kB\n"))
	if err == nil {
		t.Error("expected error when MemTotal missing")
	}
}

func TestParseNameFrom(t *testing.T) {
	input := "Name:\tsshd\nState:\tS (sleeping)\nPid:\t123\n"
	got, err := parseNameFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseNameFrom: %v", err)
	}
	if got != "sshd" {
		t.Errorf("parseNameFrom = %q, want %q", got, "sshd")
	}
}

func TestParseNameFrom_NotFound(t *testing.T) {
	_, err := parseNameFrom(strings.NewReader("State:\tS (sleeping)\n"))
	if err == nil {
		t.Error("expected error when Name line missing")
	}
}

func TestParseSystemCPUFrom(t *testing.T) {
	input := `cpu  100 10 50 800 20 0 5 0 0 0
cpu0 50 5 25 400 10 0 2 0 0 0
`
	got, err := parseSystemCPUFrom(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parseSystemCPUFrom: %v", err)
	}
	want := SystemCPU{User: 100, Nice: 10, System: 50, Idle: 800, Iowait: 20, Irq: 0, SoftIrq: 5, Steal: 0}
	if got != want {
		t.Errorf("parseSystemCPUFrom = %+v, want %+v", got, want)
	}
	if pct := got.BusyPercent(); pct <= 0 || pct >= 100 {
		t.Errorf("BusyPercent = %v, want a value in (0, 100)", pct)
	}
}

func TestParseSystemCPUFrom_Empty(t *testing.T) {
	var zero SystemCPU
	if zero.BusyPercent() != 0 {
		t.Errorf("zero-value SystemCPU.BusyPercent() = %v, want 0", zero.BusyPercent())
	}
	if _, err := parseSystemCPUFrom(strings.NewReader("nocpuline\n")); err == nil {
		t.Error("expected error when cpu line missing")
	}
}

func TestParseStatFrom(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantName    string
		wantState   proctable.State
		wantZombie  bool
		wantPPid    int32
		wantRSS     uint64
		wantErr     bool
	}{
		{
			name:      "running process",
			input:     "123 (nginx) R 1 0 0 0 0 0 0 0 0 0 10 20 0 0 0 0 0 0 777 888 500",
			wantName:  "nginx",
			wantState: proctable.Running,
			wantPPid:  1,
			wantRSS:   500,
		},
		{
			name:       "zombie process",
			input:      "456 (defunct) Z 1 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0",
			wantName:   "defunct",
			wantState:  proctable.Zombie,
			wantZombie: true,
			wantPPid:   1,
		},
		{
			name:    "malformed no parens",
			input:   "789 nginx S",
			wantErr: true,
		},
		{
			name:    "insufficient fields",
			input:   "789 (x) S 1",
			wantErr: true,
		},
		{
			name:      "name containing parens",
			input:     "1 ((sd-pam)) S 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0",
			wantName:  "(sd-pam)",
			wantState: proctable.Sleeping,
			wantPPid:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, name, err := parseStatFrom(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseStatFrom: %v", err)
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if st.State != tt.wantState {
				t.Errorf("state = %v, want %v", st.State, tt.wantState)
			}
			if st.IsZombie != tt.wantZombie {
				t.Errorf("isZombie = %v, want %v", st.IsZombie, tt.wantZombie)
			}
			if st.PPid != tt.wantPPid {
				t.Errorf("ppid = %d, want %d", st.PPid, tt.wantPPid)
			}
			if tt.wantRSS != 0 && st.RSSPages != tt.wantRSS {
				t.Errorf("rss = %d, want %d", st.RSSPages, tt.wantRSS)
			}
		})
	}
}
