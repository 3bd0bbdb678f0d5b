package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thalikbussacro/acesso-clientes/internal/uuid"
	"github.com/Thalikbussacro/acesso-clientes/storage"
)

// Client is a stored client record. Name and the search index are plaintext
// so listing and search work without the master key; notes and images are
// sealed envelopes.
type Client struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	Name        string          `json:"name"`
	Notes       *EncryptedField `json:"notes,omitempty"`
	Images      *EncryptedField `json:"images,omitempty"`
	SearchIndex string          `json:"searchIndex"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ClientInput is the plaintext payload for creating or updating a client.
type ClientInput struct {
	Name   string
	Notes  string
	Images []string
}

// ClientDetails is a client with its sensitive fields decrypted.
type ClientDetails struct {
	Client *Client
	Notes  string
	Images []string
}

// ClientSummary is the listing projection: plaintext attributes only, no
// decryption needed.
type ClientSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListClientsOptions controls search and pagination. Page is 1-based; a
// PerPage of 0 means no paging.
type ListClientsOptions struct {
	Search  string
	Page    int
	PerPage int
}

// CreateClient seals the input under the master key and persists the record.
// The search index is built from the same plaintext being encrypted, in the
// same write, so index and ciphertext can never disagree.
func (v *Vault) CreateClient(ctx context.Context, workspaceID string, input ClientInput) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("client name is required")
	}

	now := time.Now().UTC()
	c := &Client{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        input.Name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := v.fillClient(c, input); err != nil {
		return nil, err
	}
	if err := v.putClient(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetClient loads a client record without decrypting anything.
func (v *Vault) GetClient(ctx context.Context, clientID string) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.loadClient(clientID)
}

// ClientDetails loads a client and decrypts its notes and images. Fails with
// ErrVaultLocked when no key is held and ErrCorruptField when an envelope
// does not authenticate.
func (v *Vault) ClientDetails(ctx context.Context, clientID string) (*ClientDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, err := v.loadClient(clientID)
	if err != nil {
		return nil, err
	}

	details := &ClientDetails{Client: c}
	if c.Notes != nil {
		notes, err := v.OpenField(c.Notes)
		if err != nil {
			return nil, fmt.Errorf("client %s notes: %w", clientID, err)
		}
		details.Notes = string(notes)
	}
	if c.Images != nil {
		if err := v.OpenJSON(c.Images, &details.Images); err != nil {
			return nil, fmt.Errorf("client %s images: %w", clientID, err)
		}
	}
	return details, nil
}

// UpdateClient replaces a client's plaintext and sealed attributes in one
// record write. The search index is rebuilt from the new plaintext.
func (v *Vault) UpdateClient(ctx context.Context, clientID string, input ClientInput) (*Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, fmt.Errorf("client name is required")
	}
	c, err := v.loadClient(clientID)
	if err != nil {
		return nil, err
	}

	c.Name = input.Name
	if err := v.fillClient(c, input); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()
	if err := v.putClient(c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteClient removes a client and all of its access methods atomically.
func (v *Vault) DeleteClient(ctx context.Context, clientID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := v.loadClient(clientID); err != nil {
		return err
	}

	methods, err := v.methodsForClient(clientID)
	if err != nil {
		return err
	}
	return v.repo.Batch(func(tx storage.BatchTx) error {
		for _, m := range methods {
			if err := tx.Delete(storage.RecordTypeMethod, m.ID); err != nil {
				return err
			}
		}
		return tx.Delete(storage.RecordTypeClient, clientID)
	})
}

// ListClients returns client summaries sorted by name, optionally filtered
// by a search query against the plaintext name and search index. Returns the
// page of summaries plus the total match count.
func (v *Vault) ListClients(ctx context.Context, opts ListClientsOptions) ([]ClientSummary, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	ids, err := v.repo.List(storage.RecordTypeClient)
	if err != nil {
		return nil, 0, fmt.Errorf("listing clients: %w", err)
	}

	queryTokens := searchTokens(opts.Search)
	var matches []ClientSummary
	for _, id := range ids {
		c, err := v.loadClient(id)
		if err != nil {
			return nil, 0, err
		}
		if !clientMatches(c, queryTokens) {
			continue
		}
		matches = append(matches, ClientSummary{
			ID:        c.ID,
			Name:      c.Name,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return strings.ToLower(matches[i].Name) < strings.ToLower(matches[j].Name)
	})

	total := len(matches)
	if opts.PerPage > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * opts.PerPage
		if start >= total {
			return []ClientSummary{}, total, nil
		}
		end := start + opts.PerPage
		if end > total {
			end = total
		}
		matches = matches[start:end]
	}
	return matches, total, nil
}

// fillClient seals notes and images and rebuilds the search index from the
// same plaintext. Called with the final Name already set.
func (v *Vault) fillClient(c *Client, input ClientInput) error {
	notes, err := v.SealField([]byte(input.Notes))
	if err != nil {
		return fmt.Errorf("sealing notes: %w", err)
	}
	var images *EncryptedField
	if len(input.Images) > 0 {
		images, err = v.SealJSON(input.Images)
		if err != nil {
			return fmt.Errorf("sealing images: %w", err)
		}
	}
	c.Notes = notes
	c.Images = images
	c.SearchIndex = BuildSearchIndex(input.Name + " " + input.Notes)
	return nil
}

func (v *Vault) putClient(c *Client) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding client record: %w", err)
	}
	if err := v.repo.Put(storage.RecordTypeClient, c.ID, data); err != nil {
		return fmt.Errorf("persisting client: %w", err)
	}
	return nil
}

func (v *Vault) loadClient(clientID string) (*Client, error) {
	data, err := v.repo.Get(storage.RecordTypeClient, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("client %s: %w", clientID, ErrNotFound)
		}
		return nil, fmt.Errorf("loading client %s: %w", clientID, err)
	}
	var c Client
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding client record %s: %w", clientID, err)
	}
	return &c, nil
}

// searchTokens normalizes a query the same way the index is built, so
// matching is symmetric with indexing.
func searchTokens(query string) []string {
	indexed := BuildSearchIndex(query)
	if indexed == "" {
		return nil
	}
	return strings.Fields(indexed)
}

// clientMatches requires every query token to appear in the client's name or
// search index.
func clientMatches(c *Client, queryTokens []string) bool {
	if len(queryTokens) == 0 {
		return true
	}
	haystack := strings.ToLower(c.Name) + " " + c.SearchIndex
	for _, tok := range queryTokens {
		if !strings.Contains(haystack, tok) {
			return false
		}
	}
	return true
}
