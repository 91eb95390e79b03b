// Package testutil provides the shared suite and fakes used by service tests.
package testutil

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"

	"github.com/kami-operation/kamiops/internal/cache"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
	"github.com/kami-operation/kamiops/internal/repository/memory"
	"github.com/kami-operation/kamiops/internal/storage"
	"github.com/kami-operation/kamiops/internal/utils"
	"github.com/kami-operation/kamiops/internal/websocket"
)

// BaseServiceTestSuite wires fresh in-memory repositories for every test
type BaseServiceTestSuite struct {
	suite.Suite

	ctx       context.Context
	store     *memory.Store
	repos     *repository.Repositories
	cache     *cache.Cache
	storage   storage.Storage
	publisher *InMemoryPublisher
	sealer    *utils.Sealer
	log       zerolog.Logger
}

func (s *BaseServiceTestSuite) SetupSuite() {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.sealer = utils.NewSealer(key)
	s.log = zerolog.Nop()
}

func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.repos = s.store.Repositories()
	s.cache = cache.New(cache.DefaultExpiration)
	s.publisher = &InMemoryPublisher{}

	local, err := storage.NewLocal(s.T().TempDir())
	s.Require().NoError(err)
	s.storage = local
}

func (s *BaseServiceTestSuite) GetContext() context.Context { return s.ctx }
func (s *BaseServiceTestSuite) GetRepos() *repository.Repositories { return s.repos }
func (s *BaseServiceTestSuite) GetCache() *cache.Cache { return s.cache }
func (s *BaseServiceTestSuite) GetStorage() storage.Storage { return s.storage }
func (s *BaseServiceTestSuite) GetPublisher() *InMemoryPublisher { return s.publisher }
func (s *BaseServiceTestSuite) GetSealer() *utils.Sealer { return s.sealer }
func (s *BaseServiceTestSuite) GetLogger() zerolog.Logger { return s.log }

// CreateRole stores a role granting the given permission codes, creating missing permissions
func (s *BaseServiceTestSuite) CreateRole(code string, perms ...string) *models.Role {
	var granted []models.Permission
	for _, c := range perms {
		found, err := s.repos.Permissions.GetByCodes(s.ctx, []string{c})
		s.Require().NoError(err)
		if len(found) == 0 {
			p := models.Permission{Code: c, Name: c, Module: "test"}
			s.Require().NoError(s.repos.Permissions.Create(s.ctx, &p))
			found = []models.Permission{p}
		}
		granted = append(granted, found[0])
	}
	role := &models.Role{Code: code, Name: code, Permissions: granted}
	s.Require().NoError(s.repos.Roles.Create(s.ctx, role))
	return role
}

// CreateUser stores an active user; role may be nil
func (s *BaseServiceTestSuite) CreateUser(name string, role *models.Role) *models.User {
	hash, err := utils.HashPassword("password123")
	s.Require().NoError(err)
	u := &models.User{
		Username: name,
		Email:    fmt.Sprintf("%s@kami.test", name),
		Password: hash,
		Name:     name,
		IsActive: true,
	}
	if role != nil {
		u.RoleID = &role.ID
	}
	s.Require().NoError(s.repos.Users.Create(s.ctx, u))
	return u
}

// InMemoryPublisher records published events
type InMemoryPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// PublishedEvent is one recorded Publish call
type PublishedEvent struct {
	UserIDs []string
	Event   websocket.Event
}

func (p *InMemoryPublisher) Publish(_ context.Context, userIDs []string, ev websocket.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{UserIDs: append([]string(nil), userIDs...), Event: ev})
	return nil
}

// OfType returns the recorded events of one type
func (p *InMemoryPublisher) OfType(typ string) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []PublishedEvent
	for _, e := range p.Events {
		if e.Event.Type == typ {
			out = append(out, e)
		}
	}
	return out
}
