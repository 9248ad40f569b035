package service

import (
	"testing"

	"slotbook/pkg/model"
)

func TestResolveInitialStatus(t *testing.T) {
	cases := []struct {
		name      string
		role      model.Role
		requested model.Status
		want      model.Status
	}{
		{"taker always pending", model.RoleTaker, "", model.StatusPending},
		{"taker request ignored", model.RoleTaker, model.StatusCompleted, model.StatusPending},
		{"giver always available", model.RoleGiver, "", model.StatusAvailable},
		{"giver request ignored", model.RoleGiver, model.StatusDraft, model.StatusAvailable},
		{"system honors request", model.RoleSystem, model.StatusAccepted, model.StatusAccepted},
		{"system defaults to draft", model.RoleSystem, "", model.StatusDraft},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveInitialStatus(tc.role, tc.requested)
			if got != tc.want {
				t.Errorf("ResolveInitialStatus(%s, %q) = %s, want %s", tc.role, tc.requested, got, tc.want)
			}
		})
	}
}
