package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/entsync/entsync/pkg/cache"
	"github.com/entsync/entsync/pkg/config"
	"github.com/entsync/entsync/pkg/facts"
	"github.com/entsync/entsync/pkg/identity"
	"github.com/entsync/entsync/pkg/log"
	"github.com/entsync/entsync/pkg/remote"
	"github.com/entsync/entsync/pkg/store"
	"github.com/entsync/entsync/pkg/syncer"
	"github.com/entsync/entsync/pkg/types"
)

// Cache artifact names under the cache directory.
const (
	statusCacheFile    = "entitlement_status.json"
	purposeStatusFile  = "syspurpose_compliance.json"
	overridesCacheFile = "content_overrides.json"
	releaseCacheFile   = "releasever.json"
	poolsCacheFile     = "pools.json"
	profileCacheFile   = "packages.json"
	productsCacheFile  = "installed_products.json"
)

// app wires the agent's components from configuration. Construction is
// explicit and happens once per command invocation.
type app struct {
	cfg    *config.Config
	client *remote.HTTPClient
	ident  *identity.Identity
	writer *cache.Writer
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log.Init(log.Config{
		Level:      cfg.Logging.Level,
		JSONOutput: cfg.Logging.JSON,
	})

	ident, err := identity.Load(cfg.Paths.Identity)
	if err != nil {
		return nil, err
	}

	client, err := remote.NewHTTPClient(cfg.Server.URL, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		client: client,
		ident:  ident,
		writer: cache.NewWriter(cfg.Sync.CacheWriters),
	}, nil
}

// close flushes pending cache writes. Deferred by every command.
func (a *app) close() {
	a.writer.Close()
}

// consumerUUID returns the registered consumer UUID, or "" when the machine
// is not registered. A malformed identity file counts as unregistered.
func (a *app) consumerUUID() string {
	if !a.ident.Valid() {
		return ""
	}
	return a.ident.ConsumerUUID
}

// register creates a consumer on the server and persists its identity. The
// server may assign its own UUID; when it does, that one wins.
func (a *app) register(ctx context.Context, name, owner string) (*identity.Identity, error) {
	if a.ident.Valid() {
		return nil, fmt.Errorf("this system is already registered as %s", a.ident.ConsumerUUID)
	}

	id := identity.New(name, owner)
	created, err := a.client.RegisterConsumer(ctx, types.Record{
		"name":  id.Name,
		"owner": id.Owner,
		"uuid":  id.ConsumerUUID,
	})
	if err != nil {
		return nil, err
	}
	if uuid, ok := created["uuid"].(string); ok && uuid != "" {
		id.ConsumerUUID = uuid
	}
	if !id.Valid() {
		return nil, fmt.Errorf("server returned malformed consumer UUID %q", id.ConsumerUUID)
	}

	if err := id.Save(a.cfg.Paths.Identity); err != nil {
		return nil, err
	}
	a.ident = id
	return id, nil
}

// unregister deletes the consumer on the server, then removes the identity
// and every cache artifact tied to it.
func (a *app) unregister(ctx context.Context) error {
	if !a.ident.Valid() {
		return fmt.Errorf("this system is not registered")
	}

	if err := a.client.UnregisterConsumer(ctx, a.ident.ConsumerUUID); err != nil {
		return err
	}
	if err := a.deleteCaches(); err != nil {
		return err
	}
	if err := identity.Delete(a.cfg.Paths.Identity); err != nil {
		return err
	}
	a.ident = nil
	return nil
}

// deleteCaches removes every cache artifact: mirrored server data, push
// snapshots, and the merge base.
func (a *app) deleteCaches() error {
	artifacts := []string{
		statusCacheFile,
		purposeStatusFile,
		overridesCacheFile,
		releaseCacheFile,
		poolsCacheFile,
		profileCacheFile,
		productsCacheFile,
	}
	for _, name := range artifacts {
		if err := cache.NewEntry(a.cfg.CachePath(name)).Delete(); err != nil {
			return err
		}
	}
	return cache.NewEntry(a.cfg.SyspurposeCachePath()).Delete()
}

func (a *app) session(opts ...syncer.Option) (*syncer.Session, error) {
	local, err := store.Load(a.cfg.Paths.Syspurpose)
	if err != nil {
		return nil, err
	}
	cached, err := store.Load(a.cfg.SyspurposeCachePath())
	if err != nil {
		return nil, err
	}

	resource := remote.NewSyspurposeResource(a.client)
	opts = append([]syncer.Option{syncer.WithPolicy(a.cfg.Sync.ConflictPolicy)}, opts...)
	return syncer.New(local, cached, resource, a.consumerUUID(), opts...), nil
}

func (a *app) statusCache() *cache.PullCache {
	return cache.NewPullCache("entitlement-status", a.cfg.CachePath(statusCacheFile),
		a.client.GetCompliance, a.writer)
}

func (a *app) overridesCache() *cache.PullCache {
	fetch := func(ctx context.Context, consumerUUID string) (types.Record, error) {
		overrides, err := a.client.GetContentOverrides(ctx, consumerUUID)
		if err != nil {
			return nil, err
		}
		return types.Record{"contentOverrides": overrides}, nil
	}
	return cache.NewPullCache("content-overrides", a.cfg.CachePath(overridesCacheFile),
		fetch, a.writer)
}

func (a *app) releaseCache() *cache.PullCache {
	return cache.NewPullCache("release", a.cfg.CachePath(releaseCacheFile),
		a.client.GetRelease, a.writer)
}

func (a *app) purposeStatusCache() *cache.PullCache {
	return cache.NewPullCache("syspurpose-compliance", a.cfg.CachePath(purposeStatusFile),
		a.client.GetSyspurposeCompliance, a.writer)
}

func (a *app) poolsCache() *cache.PullCache {
	fetch := func(ctx context.Context, consumerUUID string) (types.Record, error) {
		pools, err := a.client.GetEntitlements(ctx, consumerUUID)
		if err != nil {
			return nil, err
		}
		return types.Record{"pools": pools}, nil
	}
	return cache.NewPullCache("pools", a.cfg.CachePath(poolsCacheFile),
		fetch, a.writer)
}

// snapshot captures one copy of the system purpose record: the local file,
// the merge base from the last reconciliation, or the server's current view.
func (a *app) snapshot(ctx context.Context, source types.Provenance) (types.Snapshot, error) {
	snap := types.Snapshot{Source: source}
	switch source {
	case types.ProvenanceLocal:
		s, err := store.Load(a.cfg.Paths.Syspurpose)
		if err != nil {
			return snap, err
		}
		snap.Data = s.Contents()
	case types.ProvenanceCached:
		s, err := store.Load(a.cfg.SyspurposeCachePath())
		if err != nil {
			return snap, err
		}
		snap.Data = s.Contents()
	case types.ProvenanceRemote:
		uuid := a.consumerUUID()
		if uuid == "" {
			return snap, fmt.Errorf("this system is not registered")
		}
		rec, err := remote.NewSyspurposeResource(a.client).Fetch(ctx, uuid)
		if err != nil {
			return snap, err
		}
		snap.Data = rec
	default:
		return snap, fmt.Errorf("unknown source %q (want local, cached or remote)", source)
	}
	return snap, nil
}

func (a *app) profileCache() *cache.PushCache {
	combined := func() bool {
		return a.client.HasCapability(context.Background(), remote.CombinedReportingCapability)
	}
	manager := facts.NewProfileManager(
		newFileCollector(a.cfg.CachePath("profile_source.json")), combined)

	push := func(ctx context.Context, consumerUUID string, payload interface{}) error {
		if a.client.HasCapability(ctx, remote.CombinedReportingCapability) {
			return a.client.UpdateCombinedProfile(ctx, consumerUUID, payload)
		}
		return a.client.UpdatePackageProfile(ctx, consumerUUID, payload)
	}
	return cache.NewPushCache("profile", a.cfg.CachePath(profileCacheFile),
		manager, push, nil)
}

func (a *app) productsCache() *cache.PushCache {
	manager := facts.NewInstalledProductsManager(
		newFileProductDirectory(a.cfg.CachePath("products_source.json")))

	// The server takes installed products as part of the consumer record,
	// in a different shape than the snapshot the cache compares against.
	push := func(ctx context.Context, consumerUUID string, _ interface{}) error {
		list, tags, err := manager.FormatForServer()
		if err != nil {
			return err
		}
		return a.client.UpdateConsumer(ctx, consumerUUID, types.Record{
			"installedProducts": list,
			"contentTags":       tags,
		})
	}
	return cache.NewPushCache("installed-products", a.cfg.CachePath(productsCacheFile),
		manager, push, nil)
}

// fileCollector reads the package profile sections a package manager plugin
// drops as JSON. The plugin owns collection; the agent owns upload.
type fileCollector struct {
	path string
}

func newFileCollector(path string) *fileCollector {
	return &fileCollector{path: path}
}

type profileSource struct {
	Packages []facts.Package `json:"rpm"`
	Repos    []facts.Repo    `json:"enabled_repos"`
	Modules  []facts.Module  `json:"modulemd"`
}

func (c *fileCollector) load() (*profileSource, error) {
	var src profileSource
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return &src, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile source %s: %w", c.path, err)
	}
	if err := json.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to parse profile source %s: %w", c.path, err)
	}
	return &src, nil
}

func (c *fileCollector) Packages() ([]facts.Package, error) {
	src, err := c.load()
	if err != nil {
		return nil, err
	}
	return src.Packages, nil
}

func (c *fileCollector) EnabledRepos() ([]facts.Repo, error) {
	src, err := c.load()
	if err != nil {
		return nil, err
	}
	return src.Repos, nil
}

func (c *fileCollector) Modules() ([]facts.Module, error) {
	src, err := c.load()
	if err != nil {
		return nil, err
	}
	return src.Modules, nil
}

// fileProductDirectory reads the installed product list maintained by the
// product certificate tooling.
type fileProductDirectory struct {
	path string
}

func newFileProductDirectory(path string) *fileProductDirectory {
	return &fileProductDirectory{path: path}
}

func (d *fileProductDirectory) InstalledProducts() ([]facts.InstalledProduct, error) {
	var products []facts.InstalledProduct
	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read products source %s: %w", d.path, err)
	}
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products source %s: %w", d.path, err)
	}
	return products, nil
}
