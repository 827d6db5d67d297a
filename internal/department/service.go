package department

import (
	"context"
	"log/slog"
	"strings"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Head derives the current head of a department from its role assignments.
// It returns nil when nobody holds a head role there.
func (s *Service) Head(ctx context.Context, tenantID int64, departmentName string) (*Head, error) {
	dept, err := s.repo.FindByName(ctx, tenantID, strings.TrimSpace(departmentName))
	if err != nil {
		return nil, err
	}
	candidates, err := s.repo.HeadCandidates(ctx, dept.ID)
	if err != nil {
		s.logger.Error("failed to load head candidates", "error", err, "department_id", dept.ID)
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// Reconcile rewrites every drifted head projection of a tenant and reports what changed.
func (s *Service) Reconcile(ctx context.Context, tenantID int64) ([]Drift, error) {
	departments, err := s.repo.ListDepartments(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, dept := range departments {
		candidates, err := s.repo.HeadCandidates(ctx, dept.ID)
		if err != nil {
			s.logger.Error("failed to load head candidates", "error", err, "department_id", dept.ID)
			return drifts, err
		}

		var derived *int64
		if len(candidates) > 0 {
			id := candidates[0].UserID
			derived = &id
		}
		if sameHead(dept.HODUserID, derived) {
			continue
		}

		if err := s.repo.SetHeadProjection(ctx, dept.ID, derived); err != nil {
			s.logger.Error("failed to rewrite head projection", "error", err, "department_id", dept.ID)
			return drifts, err
		}
		drift := Drift{DepartmentID: dept.ID, DepartmentName: dept.Name, Stored: dept.HODUserID, Derived: derived}
		drifts = append(drifts, drift)
		s.logger.Warn("department head projection drifted",
			"tenant_id", tenantID,
			"department_id", dept.ID,
			"department", dept.Name)
	}
	return drifts, nil
}

func (s *Service) ReconcileAll(ctx context.Context) ([]Drift, error) {
	tenantIDs, err := s.repo.ListTenantIDs(ctx)
	if err != nil {
		return nil, err
	}
	var all []Drift
	for _, tenantID := range tenantIDs {
		drifts, err := s.Reconcile(ctx, tenantID)
		if err != nil {
			return all, err
		}
		all = append(all, drifts...)
	}
	s.logger.Info("department head reconciliation finished", "tenants", len(tenantIDs), "drifted", len(all))
	return all, nil
}
