// Package nodes tracks remote sensing nodes (ESP32-class boards in other
// rooms) and answers their telemetry pushes with the same watering decision
// the local loop would make. Node metadata lives in nodes.json; each node's
// samples are appended to its own CSV under the data directory.
package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/model"
	"github.com/plateforme/homegarden/internal/scenario"
	"github.com/plateforme/homegarden/pkg/dedup"
)

// offlineAfter is how long a node may stay silent before it is reported
// offline.
const offlineAfter = 5 * time.Minute

const sampleTimeLayout = "2006-01-02 15:04:05"

// ErrUnknownNode rejects pushes and updates for unregistered node IDs.
var ErrUnknownNode = errors.New("unknown node")

// Node is one registered remote node.
type Node struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Location     string    `json:"location"`
	Profile      string    `json:"scenario"` // empty means follow the system's current profile
	RegisteredAt time.Time `json:"registered_at"`
	LastSeen     time.Time `json:"last_seen"`
}

// Status is a node plus its computed liveness.
type Status struct {
	Node
	Online bool `json:"online"`
}

// Push is one telemetry report from a node. Nil fields mean the node's
// sensor faulted; they are never defaulted to zero.
type Push struct {
	NodeID         string   `json:"node_id"`
	SoilMoisture   *float64 `json:"soil_moisture"`
	AirTemperature *float64 `json:"air_temperature"`
	AirHumidity    *float64 `json:"air_humidity"`
}

// Reply tells the node what to do with its local valve.
type Reply struct {
	Action          model.Action `json:"action"`
	DurationMinutes float64      `json:"duration_minutes"`
	Duplicate       bool         `json:"duplicate,omitempty"`
}

// Patch carries the node fields an update wants to change.
type Patch struct {
	Name     *string
	Location *string
	Profile  *string
}

// Registry is the node table. Safe for concurrent use.
type Registry struct {
	mu sync.Mutex

	path    string // nodes.json
	dataDir string // per-node CSVs
	store   *config.Store
	window  *dedup.Window
	now     func() time.Time

	nodes map[string]*Node
}

// NewRegistry loads nodes.json when present and creates the data directory.
func NewRegistry(path, dataDir string, store *config.Store) (*Registry, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create node data dir: %w", err)
	}
	r := &Registry{
		path:    path,
		dataDir: dataDir,
		store:   store,
		window:  dedup.New(10*time.Minute, 10000),
		now:     time.Now,
		nodes:   make(map[string]*Node),
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var list []Node
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range list {
		n := list[i]
		r.nodes[n.ID] = &n
	}
	return r, nil
}

// Register adds a node and persists the table. The ID is generated here and
// returned to the caller for the node to store.
func (r *Registry) Register(name, location, profile string) (Node, error) {
	if name == "" {
		return Node{}, errors.New("node name required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	n := &Node{
		ID:           uuid.New().String(),
		Name:         name,
		Location:     location,
		Profile:      profile,
		RegisteredAt: now,
		LastSeen:     now,
	}
	r.nodes[n.ID] = n
	if err := r.persistLocked(); err != nil {
		delete(r.nodes, n.ID)
		return Node{}, err
	}
	log.Printf("nodes: registered %q (%s)", n.Name, n.ID)
	return *n, nil
}

// Update changes a node's metadata; nil patch fields are left untouched.
func (r *Registry) Update(id string, p Patch) (Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return Node{}, ErrUnknownNode
	}
	if p.Name != nil {
		n.Name = *p.Name
	}
	if p.Location != nil {
		n.Location = *p.Location
	}
	if p.Profile != nil {
		n.Profile = *p.Profile
	}
	if err := r.persistLocked(); err != nil {
		return Node{}, err
	}
	return *n, nil
}

// Remove deletes a node from the table; its CSV history is kept.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[id]; !ok {
		return ErrUnknownNode
	}
	delete(r.nodes, id)
	return r.persistLocked()
}

// Get returns one node's status.
func (r *Registry) Get(id string) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[id]
	if !ok {
		return Status{}, false
	}
	return r.statusLocked(n), true
}

// List returns all nodes sorted by name.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, r.statusLocked(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) statusLocked(n *Node) Status {
	return Status{
		Node:   *n,
		Online: r.now().Sub(n.LastSeen) <= offlineAfter,
	}
}

// HandlePush records one telemetry report and returns the watering decision
// for the node's profile. Nodes retry on flaky links, so byte-identical
// payloads within the dedup window are acknowledged without being recorded
// again; the duplicate reply carries no action.
func (r *Registry) HandlePush(raw []byte) (Reply, error) {
	var p Push
	if err := json.Unmarshal(raw, &p); err != nil {
		return Reply{}, fmt.Errorf("parse push: %w", err)
	}

	r.mu.Lock()
	n, ok := r.nodes[p.NodeID]
	if !ok {
		r.mu.Unlock()
		return Reply{}, ErrUnknownNode
	}

	if !r.window.FirstSeen(dedup.Fingerprint(raw)) {
		r.mu.Unlock()
		log.Printf("nodes: duplicate push from %s discarded", p.NodeID)
		return Reply{Action: model.ActionNoWater, Duplicate: true}, nil
	}

	now := r.now()
	n.LastSeen = now
	if err := r.persistLocked(); err != nil {
		log.Printf("nodes: persist after push: %v", err)
	}
	id := n.ID
	profile := n.Profile
	r.mu.Unlock()

	if err := r.appendSample(id, now, p); err != nil {
		log.Printf("nodes: sample log for %s: %v", id, err)
	}

	return r.decide(profile, model.Reading{
		SoilMoisture:   p.SoilMoisture,
		AirTemperature: p.AirTemperature,
		AirHumidity:    p.AirHumidity,
		Timestamp:      now,
	})
}

// decide runs the node's reading through the same decision path as the local
// loop: maintenance mode blocks watering, vacation mode halves durations.
func (r *Registry) decide(profile string, reading model.Reading) (Reply, error) {
	cfg, err := r.store.Get()
	if err != nil {
		return Reply{}, fmt.Errorf("config load: %w", err)
	}
	if cfg.MaintenanceMode {
		return Reply{Action: model.ActionNoWater}, nil
	}

	rules := cfg.CurrentRules()
	if profile != "" {
		rules = cfg.Profiles[profile]
	}
	d := scenario.Decide(rules, reading, cfg.VacationMode)
	if !d.Matched() || !d.ShouldStart() {
		return Reply{Action: model.ActionNoWater}, nil
	}
	return Reply{Action: d.Action, DurationMinutes: d.DurationMinutes}, nil
}

// appendSample appends one CSV line to the node's history. Faulted fields
// are left empty, keeping the column positions stable.
func (r *Registry) appendSample(id string, t time.Time, p Push) error {
	path := filepath.Join(r.dataDir, id+".csv")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	line := fmt.Sprintf("%s, %s, %s, %s\n",
		t.Format(sampleTimeLayout),
		formatField(p.SoilMoisture),
		formatField(p.AirTemperature),
		formatField(p.AirHumidity))
	_, err = f.WriteString(line)
	return err
}

func formatField(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%g", *v)
}

// persistLocked writes nodes.json atomically. Callers hold r.mu.
func (r *Registry) persistLocked() error {
	list := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		list = append(list, *n)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RegisteredAt.Before(list[j].RegisteredAt) })

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.path)
}
