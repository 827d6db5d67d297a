package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	errors "github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/core/common/validation"
	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/frahmantamala/audit-management/internal/workflow"
)

type Authorizer interface {
	HasCapability(ctx context.Context, principal permission.Principal, capability string) (bool, error)
}

// Notifier plans triggers inside a transaction and delivers them after commit.
type Notifier interface {
	Plan(ctx context.Context, trigger workflow.TriggerType, wc workflow.Context) (*workflow.Plan, error)
	Deliver(ctx context.Context, plan *workflow.Plan) workflow.Report
}

type Service struct {
	repo     Repository
	authz    Authorizer
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, authz Authorizer, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, authz: authz, notifier: notifier, logger: logger}
}

func (s *Service) require(ctx context.Context, actor permission.Principal, capability string) error {
	allowed, err := s.authz.HasCapability(ctx, actor, capability)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.Warn("transition denied", "user_id", actor.UserID, "tenant_id", actor.TenantID, "capability", capability)
		return errors.NewMissingCapabilityError(capability)
	}
	return nil
}

// transition runs fn in one transaction. Plans added to the outbox are
// delivered only after commit; any error, including an empty required
// audience, rolls the state change back.
func (s *Service) transition(ctx context.Context, fn func(tx Repository, outbox *workflow.Outbox) error) ([]workflow.Report, error) {
	outbox := workflow.NewOutbox()
	if err := s.repo.WithTx(ctx, func(tx Repository) error {
		return fn(tx, outbox)
	}); err != nil {
		outbox.Discard()
		return nil, err
	}
	return outbox.Flush(ctx, s.notifier), nil
}

func (s *Service) plan(ctx context.Context, outbox *workflow.Outbox, trigger workflow.TriggerType, wc workflow.Context) error {
	p, err := s.notifier.Plan(ctx, trigger, wc)
	if err != nil {
		return err
	}
	outbox.Add(p)
	return nil
}

func (s *Service) RecordFinding(ctx context.Context, actor permission.Principal, auditID int64, dto RecordFindingDTO) (*Finding, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapFindingCreate); err != nil {
		return nil, err
	}

	f := &Finding{
		TenantID:   actor.TenantID,
		AuditID:    auditID,
		Department: strings.TrimSpace(dto.Department),
		Title:      dto.Title,
		Category:   dto.Category,
		Status:     FindingStatusPending,
		CreatedBy:  actor.UserID,
	}
	if err := s.repo.CreateFinding(ctx, f); err != nil {
		s.logger.Error("failed to record finding", "error", err, "audit_id", auditID)
		return nil, err
	}
	return f, nil
}

// CommitFindings moves the pending findings of one department to review.
func (s *Service) CommitFindings(ctx context.Context, actor permission.Principal, auditID int64, department string) (*TransitionResult, error) {
	department = strings.TrimSpace(department)
	if verr := validation.Struct(DepartmentScopeDTO{Department: department}); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapFindingCreate); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	reports, err := s.transition(ctx, func(tx Repository, outbox *workflow.Outbox) error {
		findings, err := tx.FindingsByAudit(ctx, actor.TenantID, auditID, department, FindingStatusPending)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			return ErrNothingToProcess
		}
		for _, f := range findings {
			f.Status = FindingStatusUnderReview
			if err := tx.UpdateFinding(ctx, f); err != nil {
				return err
			}
		}
		result.Findings = findings

		return s.plan(ctx, outbox, workflow.TriggerFindingCommitted, workflow.Context{
			TenantID:   actor.TenantID,
			ActorID:    actor.UserID,
			EntityType: "audit",
			EntityID:   strconv.FormatInt(auditID, 10),
			Department: department,
			Reference:  fmt.Sprintf("audit #%d", auditID),
			Extra:      map[string]interface{}{"finding_count": len(findings)},
		})
	})
	if err != nil {
		s.logger.Warn("commit findings failed", "error", err, "audit_id", auditID, "department", department)
		return nil, err
	}

	result.Notifications = reports
	s.logger.Info("findings committed", "audit_id", auditID, "department", department, "count", len(result.Findings))
	return result, nil
}

func (s *Service) ReviewFinding(ctx context.Context, actor permission.Principal, findingID int64, dto ReviewFindingDTO) (*TransitionResult, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapFindingUpdate); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	_, err := s.transition(ctx, func(tx Repository, _ *workflow.Outbox) error {
		f, err := tx.FindingByID(ctx, actor.TenantID, findingID)
		if err != nil {
			return err
		}
		if err := f.Review(actor.UserID, dto.Accept, dto.Category); err != nil {
			return err
		}
		result.Finding = f
		return tx.UpdateFinding(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	result.Notifications = []workflow.Report{}
	return result, nil
}

// FinalizeCategorization freezes the categories of the accepted findings of one department.
func (s *Service) FinalizeCategorization(ctx context.Context, actor permission.Principal, auditID int64, department string) (*TransitionResult, error) {
	department = strings.TrimSpace(department)
	if verr := validation.Struct(DepartmentScopeDTO{Department: department}); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapFindingUpdate); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	reports, err := s.transition(ctx, func(tx Repository, outbox *workflow.Outbox) error {
		accepted, err := tx.FindingsByAudit(ctx, actor.TenantID, auditID, department, FindingStatusAccepted)
		if err != nil {
			return err
		}
		pending := make([]*Finding, 0, len(accepted))
		for _, f := range accepted {
			if !f.CategoryFinalized {
				pending = append(pending, f)
			}
		}
		if len(pending) == 0 {
			return ErrNothingToProcess
		}
		for _, f := range pending {
			f.CategoryFinalized = true
			if err := tx.UpdateFinding(ctx, f); err != nil {
				return err
			}
		}
		result.Findings = pending

		return s.plan(ctx, outbox, workflow.TriggerFindingCategoryFinalized, workflow.Context{
			TenantID:   actor.TenantID,
			ActorID:    actor.UserID,
			EntityType: "audit",
			EntityID:   strconv.FormatInt(auditID, 10),
			Department: department,
			Reference:  fmt.Sprintf("audit #%d", auditID),
			Extra:      map[string]interface{}{"finding_count": len(pending)},
		})
	})
	if err != nil {
		return nil, err
	}
	result.Notifications = reports
	return result, nil
}

func (s *Service) CreateProgram(ctx context.Context, actor permission.Principal, dto CreateProgramDTO) (*Program, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapProgramCreate); err != nil {
		return nil, err
	}

	p := &Program{
		TenantID:  actor.TenantID,
		Name:      strings.TrimSpace(dto.Name),
		Status:    ProgramStatusDraft,
		CreatedBy: actor.UserID,
	}
	if err := s.repo.CreateProgram(ctx, p); err != nil {
		s.logger.Error("failed to create audit program", "error", err)
		return nil, err
	}
	return p, nil
}

func (s *Service) CommitProgram(ctx context.Context, actor permission.Principal, programID int64) (*TransitionResult, error) {
	return s.programTransition(ctx, actor, programID, CapProgramCreate, workflow.TriggerProgramCommitted,
		func(p *Program) error { return p.Commit() }, nil)
}

func (s *Service) ApproveProgram(ctx context.Context, actor permission.Principal, programID int64) (*TransitionResult, error) {
	return s.programTransition(ctx, actor, programID, CapProgramApprove, workflow.TriggerProgramApproved,
		func(p *Program) error { return p.Approve(actor.UserID) }, nil)
}

func (s *Service) RejectProgram(ctx context.Context, actor permission.Principal, programID int64, dto RejectProgramDTO) (*TransitionResult, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	return s.programTransition(ctx, actor, programID, CapProgramApprove, workflow.TriggerProgramRejected,
		func(p *Program) error { return p.Reject(dto.Reason) },
		map[string]interface{}{"reason": dto.Reason})
}

func (s *Service) programTransition(ctx context.Context, actor permission.Principal, programID int64, capability string,
	trigger workflow.TriggerType, apply func(*Program) error, extra map[string]interface{}) (*TransitionResult, error) {
	if err := s.require(ctx, actor, capability); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	reports, err := s.transition(ctx, func(tx Repository, outbox *workflow.Outbox) error {
		p, err := tx.ProgramByID(ctx, actor.TenantID, programID)
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		if err := tx.UpdateProgram(ctx, p); err != nil {
			return err
		}
		result.Program = p

		return s.plan(ctx, outbox, trigger, workflow.Context{
			TenantID:   actor.TenantID,
			ActorID:    actor.UserID,
			EntityType: "audit_program",
			EntityID:   strconv.FormatInt(p.ID, 10),
			Reference:  p.Name,
			Extra:      extra,
		})
	})
	if err != nil {
		s.logger.Warn("audit program transition failed", "error", err, "program_id", programID, "trigger", trigger)
		return nil, err
	}

	result.Notifications = reports
	s.logger.Info("audit program transitioned", "program_id", programID, "status", result.Program.Status)
	return result, nil
}

func (s *Service) RequestDocumentChange(ctx context.Context, actor permission.Principal, documentID int64, dto RequestChangeDTO) (*TransitionResult, error) {
	if verr := validation.Struct(dto); verr != nil {
		return nil, verr
	}
	if err := s.require(ctx, actor, CapDocumentCreate); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	reports, err := s.transition(ctx, func(tx Repository, outbox *workflow.Outbox) error {
		cr := &ChangeRequest{
			TenantID:    actor.TenantID,
			DocumentID:  documentID,
			Department:  strings.TrimSpace(dto.Department),
			Description: dto.Description,
			Status:      ChangeStatusSubmitted,
			RequestedBy: actor.UserID,
		}
		if err := tx.CreateChangeRequest(ctx, cr); err != nil {
			return err
		}
		result.ChangeRequest = cr

		return s.plan(ctx, outbox, workflow.TriggerDocumentChangeRequested, s.changeContext(actor, cr))
	})
	if err != nil {
		return nil, err
	}
	result.Notifications = reports
	return result, nil
}

func (s *Service) ApproveDocumentChange(ctx context.Context, actor permission.Principal, changeRequestID int64) (*TransitionResult, error) {
	if err := s.require(ctx, actor, CapDocumentApprove); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	reports, err := s.transition(ctx, func(tx Repository, outbox *workflow.Outbox) error {
		cr, err := tx.ChangeRequestByID(ctx, actor.TenantID, changeRequestID)
		if err != nil {
			return err
		}
		if err := cr.Approve(actor.UserID); err != nil {
			return err
		}
		if err := tx.UpdateChangeRequest(ctx, cr); err != nil {
			return err
		}
		result.ChangeRequest = cr

		return s.plan(ctx, outbox, workflow.TriggerDocumentChangeApproved, s.changeContext(actor, cr))
	})
	if err != nil {
		return nil, err
	}
	result.Notifications = reports
	return result, nil
}

func (s *Service) ApplyDocumentChange(ctx context.Context, actor permission.Principal, changeRequestID int64) (*TransitionResult, error) {
	if err := s.require(ctx, actor, CapDocumentUpdate); err != nil {
		return nil, err
	}

	result := &TransitionResult{}
	_, err := s.transition(ctx, func(tx Repository, _ *workflow.Outbox) error {
		cr, err := tx.ChangeRequestByID(ctx, actor.TenantID, changeRequestID)
		if err != nil {
			return err
		}
		if err := cr.Apply(); err != nil {
			return err
		}
		result.ChangeRequest = cr
		return tx.UpdateChangeRequest(ctx, cr)
	})
	if err != nil {
		return nil, err
	}
	result.Notifications = []workflow.Report{}
	return result, nil
}

func (s *Service) changeContext(actor permission.Principal, cr *ChangeRequest) workflow.Context {
	return workflow.Context{
		TenantID:   actor.TenantID,
		ActorID:    actor.UserID,
		EntityType: "document_change_request",
		EntityID:   strconv.FormatInt(cr.ID, 10),
		Department: cr.Department,
		Reference:  fmt.Sprintf("document #%d", cr.DocumentID),
		Extra:      map[string]interface{}{"document_id": cr.DocumentID},
	}
}
