package workflow

import (
	"fmt"
	"sort"
)

type TriggerType string

const (
	TriggerFindingCommitted         TriggerType = "finding.committed"
	TriggerFindingCategoryFinalized TriggerType = "finding.category_finalized"
	TriggerProgramCommitted         TriggerType = "audit_program.committed"
	TriggerProgramApproved          TriggerType = "audit_program.approved"
	TriggerProgramRejected          TriggerType = "audit_program.rejected"
	TriggerDocumentChangeRequested  TriggerType = "document.change_requested"
	TriggerDocumentChangeApproved   TriggerType = "document.change_approved"
)

// Rule binds a trigger to the capability its audience must hold.
type Rule struct {
	Trigger          TriggerType
	Module           string
	Action           string
	DepartmentScoped bool
	// Required triggers refuse to proceed when nobody would be told.
	Required   bool
	EntityPath string
	title      func(Context) string
	message    func(Context) string
}

func (r Rule) Capability() string {
	return r.Module + ":" + r.Action
}

func (r Rule) Title(c Context) string { return r.title(c) }

func (r Rule) Message(c Context) string { return r.message(c) }

var rules = map[TriggerType]Rule{
	TriggerFindingCommitted: {
		Trigger: TriggerFindingCommitted, Module: "auditFinding", Action: "read",
		DepartmentScoped: true, Required: true, EntityPath: "audits",
		title: func(c Context) string { return "Audit findings submitted for review" },
		message: func(c Context) string {
			return fmt.Sprintf("Findings for %s were committed for department %s and await your review.", c.label(), c.Department)
		},
	},
	TriggerFindingCategoryFinalized: {
		Trigger: TriggerFindingCategoryFinalized, Module: "auditFinding", Action: "read",
		DepartmentScoped: true, EntityPath: "audits",
		title: func(c Context) string { return "Finding categorization finalized" },
		message: func(c Context) string {
			return fmt.Sprintf("Categories for the accepted findings of %s are now final.", c.label())
		},
	},
	TriggerProgramCommitted: {
		Trigger: TriggerProgramCommitted, Module: "auditProgram", Action: "approve",
		Required: true, EntityPath: "programs",
		title: func(c Context) string { return "Audit program awaiting approval" },
		message: func(c Context) string {
			return fmt.Sprintf("Audit program %s was submitted and needs an approval decision.", c.label())
		},
	},
	TriggerProgramApproved: {
		Trigger: TriggerProgramApproved, Module: "auditProgram", Action: "create",
		EntityPath: "programs",
		title:      func(c Context) string { return "Audit program approved" },
		message: func(c Context) string {
			return fmt.Sprintf("Audit program %s was approved.", c.label())
		},
	},
	TriggerProgramRejected: {
		Trigger: TriggerProgramRejected, Module: "auditProgram", Action: "create",
		EntityPath: "programs",
		title:      func(c Context) string { return "Audit program returned" },
		message: func(c Context) string {
			if reason, ok := c.Extra["reason"].(string); ok && reason != "" {
				return fmt.Sprintf("Audit program %s was returned to draft: %s", c.label(), reason)
			}
			return fmt.Sprintf("Audit program %s was returned to draft.", c.label())
		},
	},
	TriggerDocumentChangeRequested: {
		Trigger: TriggerDocumentChangeRequested, Module: "document", Action: "approve",
		DepartmentScoped: true, Required: true, EntityPath: "change-requests",
		title: func(c Context) string { return "Document change requested" },
		message: func(c Context) string {
			return fmt.Sprintf("A change to %s was requested in department %s and needs approval.", c.label(), c.Department)
		},
	},
	TriggerDocumentChangeApproved: {
		Trigger: TriggerDocumentChangeApproved, Module: "document", Action: "update",
		DepartmentScoped: true, EntityPath: "change-requests",
		title: func(c Context) string { return "Document change approved" },
		message: func(c Context) string {
			return fmt.Sprintf("The change to %s was approved and can be applied.", c.label())
		},
	},
}

func RuleFor(trigger TriggerType) (Rule, bool) {
	r, ok := rules[trigger]
	return r, ok
}

// Triggers lists every known trigger in a stable order.
func Triggers() []TriggerType {
	out := make([]TriggerType, 0, len(rules))
	for t := range rules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
