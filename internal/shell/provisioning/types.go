package provisioning

import (
	"context"
	"time"
)

// =============================================================================
// Resource Models
// =============================================================================

// Function is a named serverless function. Code lives in its versions.
type Function struct {
	ID          string    `json:"-"`
	FolderID    string    `json:"folder_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	InvokeURL   string    `json:"invoke_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f Function) GetID() string          { return f.ID }
func (f *Function) SetID(id string) error { f.ID = id; return nil }
func (f Function) GetName() string        { return "functions" }

// FunctionVersion is an immutable code package deployed to a function.
type FunctionVersion struct {
	ID                   string            `json:"-"`
	FunctionID           string            `json:"function_id"`
	Runtime              string            `json:"runtime"`
	Entrypoint           string            `json:"entrypoint"`
	Description          string            `json:"description,omitempty"`
	Bucket               string            `json:"bucket_name"`
	ObjectKey            string            `json:"object_name"`
	MemoryBytes          int64             `json:"memory"`
	TimeoutSeconds       int64             `json:"execution_timeout"`
	ServiceAccountID     string            `json:"service_account_id,omitempty"`
	NamedServiceAccounts map[string]string `json:"named_service_accounts,omitempty"`
	Environment          map[string]string `json:"environment,omitempty"`
	Tags                 []string          `json:"tags,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
}

func (v FunctionVersion) GetID() string          { return v.ID }
func (v *FunctionVersion) SetID(id string) error { v.ID = id; return nil }
func (v FunctionVersion) GetName() string        { return "function_versions" }

// Gateway is an API gateway serving an OpenAPI routing descriptor.
type Gateway struct {
	ID          string    `json:"-"`
	FolderID    string    `json:"folder_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Spec        string    `json:"openapi_spec"`
	Domain      string    `json:"domain,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (g Gateway) GetID() string          { return g.ID }
func (g *Gateway) SetID(id string) error { g.ID = id; return nil }
func (g Gateway) GetName() string        { return "gateways" }

// S3Key is a static object store key pair issued to a service account.
type S3Key struct {
	ID              string `json:"-"`
	AccountName     string `json:"account_name"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
}

func (k S3Key) GetID() string          { return k.ID }
func (k *S3Key) SetID(id string) error { k.ID = id; return nil }
func (k S3Key) GetName() string        { return "s3_keys" }

// =============================================================================
// Service Interface
// =============================================================================

// Service is the provider API the deployment orchestration depends on.
// Get operations return an error matching ErrNotFound when the named
// resource does not exist.
type Service interface {
	CreateFunction(ctx context.Context, name, description string) (*Function, error)
	GetFunction(ctx context.Context, name string) (*Function, error)
	DeleteFunction(ctx context.Context, id string) error

	CreateFunctionVersion(ctx context.Context, version FunctionVersion) (*FunctionVersion, error)
	ListFunctionVersions(ctx context.Context, functionID string) ([]FunctionVersion, error)

	CreateGateway(ctx context.Context, name, description, spec string) (*Gateway, error)
	GetGateway(ctx context.Context, name string) (*Gateway, error)
	UpdateGateway(ctx context.Context, id, description, spec string) (*Gateway, error)
	DeleteGateway(ctx context.Context, id string) error

	GetS3Key(ctx context.Context, accountName string) (*S3Key, error)
}
