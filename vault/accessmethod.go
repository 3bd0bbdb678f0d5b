package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/uuid"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// AccessMethod is how a client is reached: a typed connection profile whose
// field values (hosts, usernames, passwords) are sealed as a single JSON
// envelope. Type and display name stay plaintext for listing.
type AccessMethod struct {
	ID         string          `json:"id"`
	ClientID   string          `json:"clientId"`
	MethodType string          `json:"methodType"`
	MethodName string          `json:"methodName"`
	Fields     *EncryptedField `json:"fields,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// AccessMethodInput is the plaintext payload for creating or updating an
// access method.
type AccessMethodInput struct {
	MethodType string
	MethodName string
	Fields     map[string]string
}

// FieldDefinition describes one form field of a method type.
type FieldDefinition struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// MethodTypeConfig is a plaintext per-workspace form definition for an
// access method type. Only field values are sensitive, never the schema.
type MethodTypeConfig struct {
	MethodType string            `json:"methodType"`
	Fields     []FieldDefinition `json:"fields"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// CreateMethod seals the field values and persists a new access method under
// the given client. The client must exist.
func (v *Vault) CreateMethod(ctx context.Context, clientID string, input AccessMethodInput) (*AccessMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.MethodType == "" || input.MethodName == "" {
		return nil, fmt.Errorf("method type and name are required")
	}
	if _, err := v.loadClient(clientID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m := &AccessMethod{
		ID:         uuid.New(),
		ClientID:   clientID,
		MethodType: input.MethodType,
		MethodName: input.MethodName,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if len(input.Fields) > 0 {
		fields, err := v.SealJSON(input.Fields)
		if err != nil {
			return nil, fmt.Errorf("sealing method fields: %w", err)
		}
		m.Fields = fields
	}
	if err := v.putMethod(m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMethod loads an access method without decrypting its fields.
func (v *Vault) GetMethod(ctx context.Context, methodID string) (*AccessMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.loadMethod(methodID)
}

// UpdateMethod replaces an access method's attributes and sealed fields.
func (v *Vault) UpdateMethod(ctx context.Context, methodID string, input AccessMethodInput) (*AccessMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.MethodType == "" || input.MethodName == "" {
		return nil, fmt.Errorf("method type and name are required")
	}
	m, err := v.loadMethod(methodID)
	if err != nil {
		return nil, err
	}

	m.MethodType = input.MethodType
	m.MethodName = input.MethodName
	m.Fields = nil
	if len(input.Fields) > 0 {
		fields, err := v.SealJSON(input.Fields)
		if err != nil {
			return nil, fmt.Errorf("sealing method fields: %w", err)
		}
		m.Fields = fields
	}
	m.UpdatedAt = time.Now().UTC()
	if err := v.putMethod(m); err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMethod removes an access method.
func (v *Vault) DeleteMethod(ctx context.Context, methodID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := v.repo.Delete(storage.RecordTypeMethod, methodID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("access method %s: %w", methodID, ErrNotFound)
		}
		return fmt.Errorf("deleting access method %s: %w", methodID, err)
	}
	return nil
}

// ListMethods returns a client's access methods sorted by name, fields still
// sealed.
func (v *Vault) ListMethods(ctx context.Context, clientID string) ([]*AccessMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := v.loadClient(clientID); err != nil {
		return nil, err
	}
	methods, err := v.methodsForClient(clientID)
	if err != nil {
		return nil, err
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].MethodName < methods[j].MethodName
	})
	return methods, nil
}

// RevealFields decrypts an access method's field values. This is the
// operation the resource access gate protects; callers check the grant
// before revealing.
func (v *Vault) RevealFields(ctx context.Context, methodID string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := v.loadMethod(methodID)
	if err != nil {
		return nil, err
	}
	if m.Fields == nil {
		return map[string]string{}, nil
	}
	var fields map[string]string
	if err := v.OpenJSON(m.Fields, &fields); err != nil {
		return nil, fmt.Errorf("access method %s fields: %w", methodID, err)
	}
	return fields, nil
}

// MethodTypes returns all configured method type definitions sorted by type.
func (v *Vault) MethodTypes(ctx context.Context) ([]*MethodTypeConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := v.repo.List(storage.RecordTypeMethodType)
	if err != nil {
		return nil, fmt.Errorf("listing method types: %w", err)
	}
	configs := make([]*MethodTypeConfig, 0, len(ids))
	for _, id := range ids {
		data, err := v.repo.Get(storage.RecordTypeMethodType, id)
		if err != nil {
			return nil, err
		}
		var cfg MethodTypeConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding method type %s: %w", id, err)
		}
		configs = append(configs, &cfg)
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].MethodType < configs[j].MethodType
	})
	return configs, nil
}

// SetMethodType creates or replaces a method type definition, keyed by its
// type name.
func (v *Vault) SetMethodType(ctx context.Context, cfg MethodTypeConfig) (*MethodTypeConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.MethodType == "" {
		return nil, fmt.Errorf("method type name is required")
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding method type: %w", err)
	}
	if err := v.repo.Put(storage.RecordTypeMethodType, cfg.MethodType, data); err != nil {
		return nil, fmt.Errorf("persisting method type: %w", err)
	}
	return &cfg, nil
}

func (v *Vault) putMethod(m *AccessMethod) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding access method record: %w", err)
	}
	if err := v.repo.Put(storage.RecordTypeMethod, m.ID, data); err != nil {
		return fmt.Errorf("persisting access method: %w", err)
	}
	return nil
}

func (v *Vault) loadMethod(methodID string) (*AccessMethod, error) {
	data, err := v.repo.Get(storage.RecordTypeMethod, methodID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("access method %s: %w", methodID, ErrNotFound)
		}
		return nil, fmt.Errorf("loading access method %s: %w", methodID, err)
	}
	var m AccessMethod
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding access method record %s: %w", methodID, err)
	}
	return &m, nil
}

// methodsForClient scans the method records for those belonging to a client.
func (v *Vault) methodsForClient(clientID string) ([]*AccessMethod, error) {
	ids, err := v.repo.List(storage.RecordTypeMethod)
	if err != nil {
		return nil, fmt.Errorf("listing access methods: %w", err)
	}
	var methods []*AccessMethod
	for _, id := range ids {
		m, err := v.loadMethod(id)
		if err != nil {
			return nil, err
		}
		if m.ClientID == clientID {
			methods = append(methods, m)
		}
	}
	return methods, nil
}
