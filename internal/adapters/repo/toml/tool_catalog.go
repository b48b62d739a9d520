package toml

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/grader/internal/domain"
	"github.com/bnema/grader/internal/ports"
	"github.com/spf13/viper"
)

const (
	toolsPathKey  = "storage.tools_path"
	toolsFileName = "tools.toml"
	toolsWhat     = "tools"
)

type catalogEntry struct {
	tool domain.Tool
	key  domain.ToolKey
}

// ToolCatalog serves tool snapshots from a TOML file. Resolved snapshots are
// cached by key id until Invalidate drops them.
type ToolCatalog struct {
	path string
	mu   *sync.RWMutex

	cacheMu sync.RWMutex
	cache   map[domain.ToolKeyID]catalogEntry
	// generation is bumped by Invalidate. A snapshot read under an older
	// generation is returned but never cached.
	generation uint64

	afterRead func()
}

var _ ports.ToolCatalog = (*ToolCatalog)(nil)

func NewToolCatalog(cfg *viper.Viper) (*ToolCatalog, error) {
	path, err := resolvePath(cfg, toolsPathKey, toolsFileName)
	if err != nil {
		return nil, err
	}
	return &ToolCatalog{
		path:  path,
		mu:    lockForPath(path),
		cache: map[domain.ToolKeyID]catalogEntry{},
	}, nil
}

func (c *ToolCatalog) ToolForKey(ctx context.Context, keyID domain.ToolKeyID) (domain.Tool, domain.ToolKey, error) {
	if err := ctx.Err(); err != nil {
		return domain.Tool{}, domain.ToolKey{}, err
	}

	c.cacheMu.RLock()
	entry, ok := c.cache[keyID]
	c.cacheMu.RUnlock()
	if ok {
		return cloneTool(entry.tool), entry.key, nil
	}

	c.cacheMu.RLock()
	generation := c.generation
	c.cacheMu.RUnlock()

	c.mu.RLock()
	file, err := c.readSchema()
	c.mu.RUnlock()
	if err != nil {
		return domain.Tool{}, domain.ToolKey{}, err
	}
	if c.afterRead != nil {
		c.afterRead()
	}

	var key *keySchema
	for i := range file.Keys {
		if file.Keys[i].ID == string(keyID) {
			key = &file.Keys[i]
			break
		}
	}
	if key == nil {
		return domain.Tool{}, domain.ToolKey{}, fmt.Errorf("tool key %q: %w", keyID, domain.ErrToolKeyNotFound)
	}

	for _, entry := range file.Tools {
		if entry.Name != key.Tool {
			continue
		}
		tool, err := fromToolSchema(entry)
		if err != nil {
			return domain.Tool{}, domain.ToolKey{}, err
		}
		resolved := catalogEntry{
			tool: tool,
			key:  domain.ToolKey{ID: keyID, ToolName: key.Tool, ConsumerKey: key.ConsumerKey},
		}

		c.cacheMu.Lock()
		if c.generation == generation {
			c.cache[keyID] = resolved
		}
		c.cacheMu.Unlock()

		return cloneTool(resolved.tool), resolved.key, nil
	}

	return domain.Tool{}, domain.ToolKey{}, fmt.Errorf("tool %q: %w", key.Tool, domain.ErrToolNotFound)
}

func (c *ToolCatalog) List(ctx context.Context) ([]domain.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	file, err := c.readSchema()
	if err != nil {
		return nil, err
	}

	tools := make([]domain.Tool, 0, len(file.Tools))
	for _, entry := range file.Tools {
		tool, err := fromToolSchema(entry)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// IncrementCounter bumps the tool's run counter and returns the new value.
func (c *ToolCatalog) IncrementCounter(ctx context.Context, toolName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	file, err := c.readSchema()
	if err != nil {
		return 0, err
	}

	for i := range file.Tools {
		if file.Tools[i].Name != toolName {
			continue
		}
		file.Tools[i].Counter++
		if err := writeFile(c.path, toolsWhat, file); err != nil {
			return 0, err
		}
		c.Invalidate(toolName)
		return file.Tools[i].Counter, nil
	}

	return 0, fmt.Errorf("tool %q: %w", toolName, domain.ErrToolNotFound)
}

// Invalidate drops every cached snapshot of toolName.
func (c *ToolCatalog) Invalidate(toolName string) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	c.generation++
	for keyID, entry := range c.cache {
		if entry.tool.Name == toolName {
			delete(c.cache, keyID)
		}
	}
}

func (c *ToolCatalog) readSchema() (toolsFileSchema, error) {
	var file toolsFileSchema
	if err := readFile(c.path, toolsWhat, &file); err != nil {
		return toolsFileSchema{}, err
	}
	if err := file.validateVersion(); err != nil {
		return toolsFileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func fromToolSchema(entry toolSchema) (domain.Tool, error) {
	kind, err := domain.ParseRunnerKind(entry.Runner)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("tool %q: %w", entry.Name, err)
	}
	from, err := parseOptionalTime(entry.EnabledFrom)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("tool %q enabled_from: %w", entry.Name, err)
	}
	until, err := parseOptionalTime(entry.EnabledUntil)
	if err != nil {
		return domain.Tool{}, fmt.Errorf("tool %q enabled_until: %w", entry.Name, err)
	}

	return domain.Tool{
		Name:             entry.Name,
		DataDir:          entry.DataDir,
		CorrectorPath:    entry.CorrectorPath,
		RunnerKind:       kind,
		DeliveryPassword: entry.DeliveryPassword,
		Enabled:          entry.Enabled,
		EnabledFrom:      from,
		EnabledUntil:     until,
		Outcome:          entry.Outcome,
		ExtraArgs:        entry.ExtraArgs,
		PrivilegedArgs:   entry.PrivilegedArgs,
		Counter:          entry.Counter,
		Config: domain.ToolConfig{
			MaxConcurrentUsers:     entry.Config.MaxConcurrentUsers,
			KeepFiles:              entry.Config.KeepFiles,
			KeepOutput:             entry.Config.KeepOutput,
			ManageAttempts:         entry.Config.ManageAttempts,
			MaxAttempts:            entry.Config.MaxAttempts,
			MaxAttemptsPerFileName: entry.Config.MaxAttemptsPerFileName,
			InputFilePattern:       entry.Config.InputFilePattern,
			MaxUploadKB:            entry.Config.MaxUploadKB,
			CommandEnabled:         entry.Config.CommandEnabled,
			CommandFileName:        entry.Config.CommandFileName,
			TextEnabled:            entry.Config.TextEnabled,
			TextFileName:           entry.Config.TextFileName,
		},
	}, nil
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// cloneTool copies the slices and pointers of a cached snapshot so callers
// cannot mutate the cache through them.
func cloneTool(tool domain.Tool) domain.Tool {
	tool.ExtraArgs = append([]string(nil), tool.ExtraArgs...)
	tool.PrivilegedArgs = append([]string(nil), tool.PrivilegedArgs...)
	if tool.EnabledFrom != nil {
		from := *tool.EnabledFrom
		tool.EnabledFrom = &from
	}
	if tool.EnabledUntil != nil {
		until := *tool.EnabledUntil
		tool.EnabledUntil = &until
	}
	return tool
}
