package directory

import (
	"context"
	"sync"

	id "applygate/pkg/domain"
)

// InMemoryStore keeps the record graph in process memory for tests and local
// runs. Seed helpers populate the collections tests need.
type InMemoryStore struct {
	mu           sync.RWMutex
	profiles     map[id.UserID]*Profile
	addresses    map[id.UserID]*Address
	financials   map[id.UserID]*Financial
	affiliations map[id.UserID][]*Affiliation
	attachments  map[id.UserID][]*Attachment
	applications map[id.UserID][]*Application
	companies    map[id.UserID]*Company
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles:     make(map[id.UserID]*Profile),
		addresses:    make(map[id.UserID]*Address),
		financials:   make(map[id.UserID]*Financial),
		affiliations: make(map[id.UserID][]*Affiliation),
		attachments:  make(map[id.UserID][]*Attachment),
		applications: make(map[id.UserID][]*Application),
		companies:    make(map[id.UserID]*Company),
	}
}

func (s *InMemoryStore) Load(_ context.Context, userID id.UserID) (*Graph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g := &Graph{}
	if p, ok := s.profiles[userID]; ok {
		copied := *p
		g.Profile = &copied
	}
	if a, ok := s.addresses[userID]; ok {
		copied := *a
		g.Address = &copied
	}
	if f, ok := s.financials[userID]; ok {
		copied := *f
		g.Financial = &copied
	}
	for _, af := range s.affiliations[userID] {
		copied := *af
		g.Affiliations = append(g.Affiliations, &copied)
	}
	for _, at := range s.attachments[userID] {
		copied := *at
		g.Attachments = append(g.Attachments, &copied)
	}
	for _, ap := range s.applications[userID] {
		copied := *ap
		g.Applications = append(g.Applications, &copied)
	}
	if c, ok := s.companies[userID]; ok {
		copied := *c
		g.Company = &copied
	}
	return g, nil
}

func (s *InMemoryStore) CreateProfile(_ context.Context, p *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *p
	s.profiles[p.UserID] = &copied
	return nil
}

func (s *InMemoryStore) CreateAddress(_ context.Context, a *Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.addresses[a.UserID] = &copied
	return nil
}

func (s *InMemoryStore) CreateFinancial(_ context.Context, f *Financial) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *f
	s.financials[f.UserID] = &copied
	return nil
}

// SeedAffiliation adds an affiliation row for archival tests.
func (s *InMemoryStore) SeedAffiliation(a *Affiliation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.affiliations[a.UserID] = append(s.affiliations[a.UserID], &copied)
}

// SeedAttachment adds an attachment row for archival tests.
func (s *InMemoryStore) SeedAttachment(a *Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.attachments[a.UserID] = append(s.attachments[a.UserID], &copied)
}

// SeedApplication adds an application row for archival tests.
func (s *InMemoryStore) SeedApplication(a *Application) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *a
	s.applications[a.ApplicantID] = append(s.applications[a.ApplicantID], &copied)
}

// SeedCompany adds a company row for archival tests.
func (s *InMemoryStore) SeedCompany(c *Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *c
	s.companies[c.OwnerID] = &copied
}
