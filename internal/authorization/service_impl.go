package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectPayout    = "payout"
	ObjectStatement = "statement"
)

const (
	ActionPayoutGenerate      = "payout.generate"
	ActionPayoutSendTransfers = "payout.send_transfers"
	ActionPayoutView          = "payout.view"
	ActionPayoutExport        = "payout.export"

	ActionStatementView = "statement.view"
)

const (
	ActorSystem     = "system"
	rolePrefix      = "role:"
	RoleAdmin       = "role:admin"
	RoleFinance     = "role:finance"
	RoleClubViewer  = "role:club_viewer"
	RoleSystem      = "role:system"
	actorTypeRole   = "role"
	actorTypeSystem = "system"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize checks actor ("system" or "role:<name>") against the seeded policies.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.ToLower(strings.TrimSpace(actor))
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, actorType, err := resolveActor(actor)
	if err != nil {
		return err
	}
	if actorType == actorTypeSystem {
		if err := s.ensureGrouping(subject, RoleSystem); err != nil {
			return err
		}
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("actor", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ParseActor splits an actor header value into type and id for logging context.
func ParseActor(actor string) (string, string, error) {
	subject, actorType, err := resolveActor(strings.ToLower(strings.TrimSpace(actor)))
	if err != nil {
		return "", "", err
	}
	return actorType, strings.TrimPrefix(subject, rolePrefix), nil
}

func resolveActor(actor string) (string, string, error) {
	if actor == ActorSystem {
		return actor, actorTypeSystem, nil
	}
	if strings.HasPrefix(actor, rolePrefix) && len(actor) > len(rolePrefix) {
		return actor, actorTypeRole, nil
	}
	return "", "", ErrInvalidActor
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Club viewers read their payout history and statements.
		{RoleClubViewer, ObjectPayout, ActionPayoutView},
		{RoleClubViewer, ObjectStatement, ActionStatementView},

		{RoleFinance, ObjectPayout, ActionPayoutView},
		{RoleFinance, ObjectPayout, ActionPayoutExport},
		{RoleFinance, ObjectPayout, ActionPayoutGenerate},
		{RoleFinance, ObjectPayout, ActionPayoutSendTransfers},
		{RoleFinance, ObjectStatement, ActionStatementView},

		{RoleAdmin, ObjectPayout, ActionPayoutView},
		{RoleAdmin, ObjectPayout, ActionPayoutExport},
		{RoleAdmin, ObjectPayout, ActionPayoutGenerate},
		{RoleAdmin, ObjectPayout, ActionPayoutSendTransfers},
		{RoleAdmin, ObjectStatement, ActionStatementView},

		// Scheduler and internal callers.
		{RoleSystem, ObjectPayout, ActionPayoutGenerate},
		{RoleSystem, ObjectPayout, ActionPayoutSendTransfers},
		{RoleSystem, ObjectPayout, ActionPayoutView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
