package audit

import "github.com/frahmantamala/audit-management/internal/workflow"

type RecordFindingDTO struct {
	Department string `json:"department" validate:"required,max=255"`
	Title      string `json:"title" validate:"required,max=255"`
	Category   string `json:"category" validate:"max=100"`
}

type DepartmentScopeDTO struct {
	Department string `json:"department" validate:"required"`
}

type ReviewFindingDTO struct {
	Accept   bool   `json:"accept"`
	Category string `json:"category" validate:"max=100"`
}

type CreateProgramDTO struct {
	Name string `json:"name" validate:"required,max=255"`
}

type RejectProgramDTO struct {
	Reason string `json:"reason" validate:"required"`
}

type RequestChangeDTO struct {
	Department  string `json:"department" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
}

// TransitionResult is the state after a transition plus what was delivered
// once it committed.
type TransitionResult struct {
	Findings      []*Finding        `json:"findings,omitempty"`
	Finding       *Finding          `json:"finding,omitempty"`
	Program       *Program          `json:"program,omitempty"`
	ChangeRequest *ChangeRequest    `json:"change_request,omitempty"`
	Notifications []workflow.Report `json:"notifications"`
}
