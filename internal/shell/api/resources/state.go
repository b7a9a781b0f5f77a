package resources

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/artpar/yappa/internal/shell/provisioning"
	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
	ErrInvalid  = errors.New("invalid")
)

// =============================================================================
// In-Memory Provider State
// =============================================================================

// State holds every resource the emulator has created. Resources are
// scoped to the folder they were created in.
type State struct {
	mu sync.RWMutex

	functions map[string]provisioning.Function
	versions  map[string][]provisioning.FunctionVersion // by function ID
	gateways  map[string]provisioning.Gateway
	keys      map[string]provisioning.S3Key // by folder + account name

	baseDomain string
	now        func() time.Time
}

// NewState creates an empty state. Gateways are served on subdomains of
// baseDomain.
func NewState(baseDomain string) *State {
	if baseDomain == "" {
		baseDomain = "apigw.localhost"
	}
	return &State{
		functions:  make(map[string]provisioning.Function),
		versions:   make(map[string][]provisioning.FunctionVersion),
		gateways:   make(map[string]provisioning.Gateway),
		keys:       make(map[string]provisioning.S3Key),
		baseDomain: baseDomain,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// =============================================================================
// Functions
// =============================================================================

// ListFunctions returns the folder's functions sorted by name. A non-empty
// name restricts the result to that function.
func (s *State) ListFunctions(folderID, name string) []provisioning.Function {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]provisioning.Function, 0)
	for _, fn := range s.functions {
		if fn.FolderID != folderID || (name != "" && fn.Name != name) {
			continue
		}
		result = append(result, fn)
	}
	slices.SortFunc(result, func(a, b provisioning.Function) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// GetFunction returns a function of the folder by ID.
func (s *State) GetFunction(folderID, id string) (provisioning.Function, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.functions[id]
	if !ok || fn.FolderID != folderID {
		return provisioning.Function{}, fmt.Errorf("function %s: %w", id, ErrNotFound)
	}
	return fn, nil
}

// CreateFunction stores a new function. Names are unique per folder.
func (s *State) CreateFunction(folderID string, fn provisioning.Function) (provisioning.Function, error) {
	if fn.Name == "" {
		return provisioning.Function{}, fmt.Errorf("function name is required: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.functions {
		if existing.FolderID == folderID && existing.Name == fn.Name {
			return provisioning.Function{}, fmt.Errorf("function %q: %w", fn.Name, ErrConflict)
		}
	}

	fn.ID = generateID("fn")
	fn.FolderID = folderID
	fn.InvokeURL = "https://functions." + s.baseDomain + "/" + fn.ID
	fn.CreatedAt = s.now()
	s.functions[fn.ID] = fn
	return fn, nil
}

// UpdateFunction replaces the description of a function.
func (s *State) UpdateFunction(folderID string, fn provisioning.Function) (provisioning.Function, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.functions[fn.ID]
	if !ok || existing.FolderID != folderID {
		return provisioning.Function{}, fmt.Errorf("function %s: %w", fn.ID, ErrNotFound)
	}
	existing.Description = fn.Description
	s.functions[fn.ID] = existing
	return existing, nil
}

// DeleteFunction removes a function together with its versions.
func (s *State) DeleteFunction(folderID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.functions[id]
	if !ok || fn.FolderID != folderID {
		return fmt.Errorf("function %s: %w", id, ErrNotFound)
	}
	delete(s.functions, id)
	delete(s.versions, id)
	return nil
}

// =============================================================================
// Function Versions
// =============================================================================

// CreateVersion appends an immutable version to an existing function.
func (s *State) CreateVersion(folderID string, v provisioning.FunctionVersion) (provisioning.FunctionVersion, error) {
	switch {
	case v.Runtime == "":
		return provisioning.FunctionVersion{}, fmt.Errorf("runtime is required: %w", ErrInvalid)
	case v.Entrypoint == "":
		return provisioning.FunctionVersion{}, fmt.Errorf("entrypoint is required: %w", ErrInvalid)
	case v.Bucket == "" || v.ObjectKey == "":
		return provisioning.FunctionVersion{}, fmt.Errorf("package bucket and object are required: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fn, ok := s.functions[v.FunctionID]
	if !ok || fn.FolderID != folderID {
		return provisioning.FunctionVersion{}, fmt.Errorf("function %s: %w", v.FunctionID, ErrNotFound)
	}

	v.ID = generateID("ver")
	v.CreatedAt = s.now()
	s.versions[v.FunctionID] = append(s.versions[v.FunctionID], v)
	return v, nil
}

// ListVersions returns the versions of a function, oldest first.
func (s *State) ListVersions(folderID, functionID string) ([]provisioning.FunctionVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fn, ok := s.functions[functionID]
	if !ok || fn.FolderID != folderID {
		return nil, fmt.Errorf("function %s: %w", functionID, ErrNotFound)
	}
	return slices.Clone(s.versions[functionID]), nil
}

// GetVersion returns a version by ID.
func (s *State) GetVersion(folderID, id string) (provisioning.FunctionVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for fnID, versions := range s.versions {
		if s.functions[fnID].FolderID != folderID {
			continue
		}
		for _, v := range versions {
			if v.ID == id {
				return v, nil
			}
		}
	}
	return provisioning.FunctionVersion{}, fmt.Errorf("function version %s: %w", id, ErrNotFound)
}

// =============================================================================
// Gateways
// =============================================================================

// ListGateways returns the folder's gateways sorted by name. A non-empty
// name restricts the result to that gateway.
func (s *State) ListGateways(folderID, name string) []provisioning.Gateway {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]provisioning.Gateway, 0)
	for _, gw := range s.gateways {
		if gw.FolderID != folderID || (name != "" && gw.Name != name) {
			continue
		}
		result = append(result, gw)
	}
	slices.SortFunc(result, func(a, b provisioning.Gateway) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// GetGateway returns a gateway of the folder by ID.
func (s *State) GetGateway(folderID, id string) (provisioning.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gw, ok := s.gateways[id]
	if !ok || gw.FolderID != folderID {
		return provisioning.Gateway{}, fmt.Errorf("gateway %s: %w", id, ErrNotFound)
	}
	return gw, nil
}

// CreateGateway stores a new gateway. Names are unique per folder.
func (s *State) CreateGateway(folderID string, gw provisioning.Gateway) (provisioning.Gateway, error) {
	if gw.Name == "" {
		return provisioning.Gateway{}, fmt.Errorf("gateway name is required: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.gateways {
		if existing.FolderID == folderID && existing.Name == gw.Name {
			return provisioning.Gateway{}, fmt.Errorf("gateway %q: %w", gw.Name, ErrConflict)
		}
	}

	now := s.now()
	gw.ID = generateID("gw")
	gw.FolderID = folderID
	gw.Domain = gw.ID + "." + s.baseDomain
	gw.CreatedAt = now
	gw.UpdatedAt = now
	s.gateways[gw.ID] = gw
	return gw, nil
}

// UpdateGateway replaces the description and routing descriptor of a gateway.
func (s *State) UpdateGateway(folderID string, gw provisioning.Gateway) (provisioning.Gateway, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.gateways[gw.ID]
	if !ok || existing.FolderID != folderID {
		return provisioning.Gateway{}, fmt.Errorf("gateway %s: %w", gw.ID, ErrNotFound)
	}
	existing.Description = gw.Description
	existing.Spec = gw.Spec
	existing.UpdatedAt = s.now()
	s.gateways[gw.ID] = existing
	return existing, nil
}

// DeleteGateway removes a gateway.
func (s *State) DeleteGateway(folderID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gw, ok := s.gateways[id]
	if !ok || gw.FolderID != folderID {
		return fmt.Errorf("gateway %s: %w", id, ErrNotFound)
	}
	delete(s.gateways, id)
	return nil
}

// =============================================================================
// Static Keys
// =============================================================================

// IssueKey returns the static key of a service account, creating it on
// first use. Repeated calls return the same key pair.
func (s *State) IssueKey(folderID, accountName string) (provisioning.S3Key, error) {
	if accountName == "" {
		return provisioning.S3Key{}, fmt.Errorf("account name is required: %w", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := folderID + "/" + accountName
	if key, ok := s.keys[index]; ok {
		return key, nil
	}

	secret := strings.ReplaceAll(uuid.New().String()+uuid.New().String(), "-", "")
	key := provisioning.S3Key{
		ID:              generateID("key"),
		AccountName:     accountName,
		AccessKeyID:     "YAPPA" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:15]),
		SecretAccessKey: secret[:40],
	}
	s.keys[index] = key
	return key, nil
}

// GetKey returns an issued key by ID.
func (s *State) GetKey(folderID, id string) (provisioning.S3Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for index, key := range s.keys {
		if key.ID == id && strings.HasPrefix(index, folderID+"/") {
			return key, nil
		}
	}
	return provisioning.S3Key{}, fmt.Errorf("key %s: %w", id, ErrNotFound)
}

// RevokeKey deletes an issued key.
func (s *State) RevokeKey(folderID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for index, key := range s.keys {
		if key.ID == id && strings.HasPrefix(index, folderID+"/") {
			delete(s.keys, index)
			return nil
		}
	}
	return fmt.Errorf("key %s: %w", id, ErrNotFound)
}
