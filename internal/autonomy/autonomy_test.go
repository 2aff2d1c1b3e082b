package autonomy

import (
	"errors"
	"testing"

	"github.com/ppiankov/pmguard/internal/model"
)

func TestAllowListsAreMonotonic(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		lower := AllowedActions(Levels[i-1])
		higher := AllowedActions(Levels[i])

		set := make(map[model.ActionType]bool, len(higher))
		for _, a := range higher {
			set[a] = true
		}
		for _, a := range lower {
			if !set[a] {
				t.Errorf("%s allows %s but %s does not", Levels[i-1], a, Levels[i])
			}
		}
		if len(higher) <= len(lower) {
			t.Errorf("expected %s to be a strict superset of %s", Levels[i], Levels[i-1])
		}
	}
}

func TestAllowedActionsPerLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  []model.ActionType
	}{
		{Monitoring, []model.ActionType{model.ActionHeartbeatLog}},
		{Artefact, []model.ActionType{
			model.ActionHeartbeatLog,
			model.ActionArtefactUpdate,
			model.ActionNotificationInternal,
		}},
		{Tactical, []model.ActionType{
			model.ActionHeartbeatLog,
			model.ActionArtefactUpdate,
			model.ActionNotificationInternal,
			model.ActionJiraComment,
			model.ActionEmailStakeholder,
			model.ActionJiraStatusChange,
		}},
	}

	for _, tt := range tests {
		got := AllowedActions(tt.level)
		if len(got) != len(tt.want) {
			t.Fatalf("AllowedActions(%s) = %v, want %v", tt.level, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("AllowedActions(%s)[%d] = %s, want %s", tt.level, i, got[i], tt.want[i])
			}
		}
	}
}

func TestAllowedActionsReturnsCopy(t *testing.T) {
	got := AllowedActions(Tactical)
	got[0] = model.ActionDeleteData

	again := AllowedActions(Tactical)
	if again[0] != model.ActionHeartbeatLog {
		t.Fatalf("mutating the returned slice changed the permission model: %v", again)
	}
}

func TestAllowedActionsUnknownLevel(t *testing.T) {
	if got := AllowedActions(Level(7)); len(got) != 0 {
		t.Errorf("expected nothing allowed at unknown level, got %v", got)
	}
	if Permits(Level(-1), model.ActionHeartbeatLog) {
		t.Error("expected unknown level to permit nothing")
	}
}

func TestMinimumLevel(t *testing.T) {
	tests := []struct {
		action model.ActionType
		level  Level
		ok     bool
	}{
		{model.ActionHeartbeatLog, Monitoring, true},
		{model.ActionArtefactUpdate, Artefact, true},
		{model.ActionNotificationInternal, Artefact, true},
		{model.ActionJiraComment, Tactical, true},
		{model.ActionEmailStakeholder, Tactical, true},
		{model.ActionJiraStatusChange, Tactical, true},
		{model.ActionEmailExternal, 0, false},
		{model.ActionScopeChange, 0, false},
		{model.ActionDeleteData, 0, false},
		{"launch_rocket", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		level, ok := MinimumLevel(tt.action)
		if ok != tt.ok {
			t.Errorf("MinimumLevel(%q) ok = %v, want %v", tt.action, ok, tt.ok)
			continue
		}
		if ok && level != tt.level {
			t.Errorf("MinimumLevel(%q) = %s, want %s", tt.action, level, tt.level)
		}
	}
}

func TestPermitsMatchesMinimumLevel(t *testing.T) {
	for _, action := range model.KnownActionTypes {
		min, unlockable := MinimumLevel(action)
		for _, level := range Levels {
			want := unlockable && level >= min
			if got := Permits(level, action); got != want {
				t.Errorf("Permits(%s, %s) = %v, want %v", level, action, got, want)
			}
		}
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	for _, a := range Levels {
		if Compare(a, a) != 0 {
			t.Errorf("Compare(%s, %s) != 0", a, a)
		}
		for _, b := range Levels {
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare not antisymmetric for %s, %s", a, b)
			}
			for _, c := range Levels {
				if Compare(a, b) < 0 && Compare(b, c) < 0 && Compare(a, c) >= 0 {
					t.Errorf("Compare not transitive for %s < %s < %s", a, b, c)
				}
			}
		}
	}
	if Compare(Monitoring, Tactical) >= 0 {
		t.Error("expected monitoring < tactical")
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range Levels {
		got, err := ParseLevel(l.String())
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("ParseLevel(%q) = %s, want %s", l.String(), got, l)
		}
	}

	for _, bad := range []string{"", "Tactical", " tactical", "artifact", "admin"} {
		if _, err := ParseLevel(bad); !errors.Is(err, ErrUnknownLevel) {
			t.Errorf("ParseLevel(%q) err = %v, want ErrUnknownLevel", bad, err)
		}
	}
}

func TestLevelTextRoundTrip(t *testing.T) {
	var l Level
	if err := l.UnmarshalText([]byte("artefact")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if l != Artefact {
		t.Fatalf("expected artefact, got %s", l)
	}
	if _, err := Level(9).MarshalText(); err == nil {
		t.Error("expected MarshalText to reject unknown level")
	}
}
