package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/fogsim/fogsim/sim"
	"github.com/fogsim/fogsim/sim/container"
)

// TopologySpec is the top-level input topology.
// Loaded from YAML via LoadTopologySpec(path) or built by a Scenario preset.
type TopologySpec struct {
	Version string `yaml:"version"`
	Name    string `yaml:"name,omitempty"`
	Seed    int64  `yaml:"seed,omitempty"`
	Ticks   int    `yaml:"ticks,omitempty"`
	Jitter  string `yaml:"jitter,omitempty"`

	Units        []UnitSpec       `yaml:"units"`
	Requests     []RequestSpec    `yaml:"requests,omitempty"`
	Bundles      []BundleSpec     `yaml:"bundles,omitempty"`
	Layers       []LayerSpec      `yaml:"layers,omitempty"`
	Images       []ImageSpec      `yaml:"images,omitempty"`
	Instances    []InstanceSpec   `yaml:"instances,omitempty"`
	Containers   []ContainerSpec  `yaml:"containers,omitempty"`
	Dependencies []DependencySpec `yaml:"dependencies,omitempty"`
	// Invocations lists the functions invoked each tick, in order.
	// Empty means every function with a container pool, once, by name.
	Invocations []string `yaml:"invocations,omitempty"`

	Policy *sim.PolicyBundle `yaml:"policy,omitempty"`
}

// UnitSpec describes one resource unit.
type UnitSpec struct {
	ID              int     `yaml:"id"`
	Name            string  `yaml:"name,omitempty"`
	MaxCapacity     float64 `yaml:"max_capacity"`
	UsedCapacity    float64 `yaml:"used_capacity,omitempty"`
	ComputationCost float64 `yaml:"computation_cost,omitempty"`
	RetentionCost   float64 `yaml:"retention_cost,omitempty"`
	PreparationCost float64 `yaml:"preparation_cost,omitempty"`
	NetworkLatency  float64 `yaml:"network_latency,omitempty"`
	CPUUsage        float64 `yaml:"cpu_usage,omitempty"`
	Replicas        int     `yaml:"replicas,omitempty"`
	MinReplicas     int     `yaml:"min_replicas,omitempty"`
	MaxReplicas     int     `yaml:"max_replicas,omitempty"`
	CPUFrequency    float64 `yaml:"cpu_frequency,omitempty"`
	Bandwidth       float64 `yaml:"bandwidth,omitempty"`
	StorageCapacity float64 `yaml:"storage_capacity,omitempty"`
	Distance        float64 `yaml:"distance,omitempty"`
	MaxContainers   int     `yaml:"max_containers,omitempty"`
	LocalLayers     []int   `yaml:"local_layers,omitempty"`
}

// RequestSpec describes one service request.
type RequestSpec struct {
	ID                     int     `yaml:"id"`
	Deadline               float64 `yaml:"deadline,omitempty"`
	Load                   float64 `yaml:"load"`
	TransferCost           float64 `yaml:"transfer_cost,omitempty"`
	PreparationCost        float64 `yaml:"preparation_cost,omitempty"`
	Demand                 float64 `yaml:"demand,omitempty"`
	Distance               float64 `yaml:"distance,omitempty"`
	DataSize               float64 `yaml:"data_size,omitempty"`
	ComputationRequirement float64 `yaml:"computation_requirement,omitempty"`
	Image                  *int    `yaml:"image,omitempty"`
}

// BundleSpec describes one prefetchable service bundle.
type BundleSpec struct {
	ID           int     `yaml:"id"`
	Size         float64 `yaml:"size"`
	PrefetchCost float64 `yaml:"prefetch_cost"`
}

// LayerSpec describes one container image layer.
type LayerSpec struct {
	ID   int     `yaml:"id"`
	Size float64 `yaml:"size"`
}

// ImageSpec groups layers into a container image.
type ImageSpec struct {
	ID     int   `yaml:"id"`
	Layers []int `yaml:"layers"`
}

// InstanceSpec places a function instance on a unit (by unit ID).
type InstanceSpec struct {
	ID       string `yaml:"id"`
	Function string `yaml:"function"`
	Unit     int    `yaml:"unit"`
}

// ContainerSpec seeds Count containers in a function's pool.
type ContainerSpec struct {
	Function string `yaml:"function"`
	State    string `yaml:"state,omitempty"` // private (default), zygote, helper
	Idle     bool   `yaml:"idle"`
	Count    int    `yaml:"count,omitempty"` // default 1
}

// DependencySpec declares that Helper can help Target; Mutual adds the reverse edge.
type DependencySpec struct {
	Helper string `yaml:"helper"`
	Target string `yaml:"target"`
	Mutual bool   `yaml:"mutual,omitempty"`
}

// ContainerSeed is a resolved ContainerSpec entry.
type ContainerSeed struct {
	Function string
	State    container.State
	Idle     bool
}

// Topology is a validated TopologySpec converted into simulator types.
type Topology struct {
	Name        string
	Units       []sim.ResourceUnit
	Requests    []sim.ServiceRequest
	Bundles     []sim.PrefetchBundle
	Catalog     sim.LayerCatalog
	Instances   []sim.FunctionInstance
	Containers  []ContainerSeed
	Graph       *container.DependencyGraph
	Invocations []string
}

// LoadTopologySpec reads a topology YAML file. Unknown fields are rejected.
func LoadTopologySpec(path string) (*TopologySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading topology spec: %w", err)
	}
	return ParseTopologySpec(data)
}

// ParseTopologySpec decodes topology YAML. Unknown fields are rejected.
func ParseTopologySpec(data []byte) (*TopologySpec, error) {
	var spec TopologySpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing topology spec: %w", err)
	}
	return &spec, nil
}

var validVersions = map[string]bool{"": true, "1": true}

// Validate checks that all fields are valid and cross-references resolve.
func (s *TopologySpec) Validate() error {
	if !validVersions[s.Version] {
		return fmt.Errorf("unsupported topology version %q", s.Version)
	}
	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative, got %d", s.Ticks)
	}
	if !IsValidJitter(s.Jitter) {
		return fmt.Errorf("unknown jitter %q; valid: %v", s.Jitter, ValidJitterNames())
	}

	unitIDs := sets.New[int]()
	for i, u := range s.Units {
		if err := validateUnit(&u, i); err != nil {
			return err
		}
		if unitIDs.Has(u.ID) {
			return fmt.Errorf("unit[%d]: duplicate id %d", i, u.ID)
		}
		unitIDs.Insert(u.ID)
	}

	layerIDs := sets.New[int]()
	for i, l := range s.Layers {
		if layerIDs.Has(l.ID) {
			return fmt.Errorf("layer[%d]: duplicate id %d", i, l.ID)
		}
		if l.Size < 0 || math.IsNaN(l.Size) {
			return fmt.Errorf("layer[%d]: size must be non-negative, got %v", i, l.Size)
		}
		layerIDs.Insert(l.ID)
	}
	imageIDs := sets.New[int]()
	for i, img := range s.Images {
		if imageIDs.Has(img.ID) {
			return fmt.Errorf("image[%d]: duplicate id %d", i, img.ID)
		}
		for _, l := range img.Layers {
			if !layerIDs.Has(l) {
				return fmt.Errorf("image[%d]: unknown layer %d", i, l)
			}
		}
		imageIDs.Insert(img.ID)
	}
	for i, u := range s.Units {
		for _, l := range u.LocalLayers {
			if !layerIDs.Has(l) {
				return fmt.Errorf("unit[%d]: unknown local layer %d", i, l)
			}
		}
	}

	requestIDs := sets.New[int]()
	for i, r := range s.Requests {
		if requestIDs.Has(r.ID) {
			return fmt.Errorf("request[%d]: duplicate id %d", i, r.ID)
		}
		requestIDs.Insert(r.ID)
		if r.Load < 0 || r.Demand < 0 || r.DataSize < 0 || math.IsNaN(r.Load) {
			return fmt.Errorf("request[%d]: load, demand and data_size must be non-negative", i)
		}
		if r.Image != nil && !imageIDs.Has(*r.Image) {
			return fmt.Errorf("request[%d]: unknown image %d", i, *r.Image)
		}
	}

	bundleIDs := sets.New[int]()
	for i, b := range s.Bundles {
		if bundleIDs.Has(b.ID) {
			return fmt.Errorf("bundle[%d]: duplicate id %d", i, b.ID)
		}
		bundleIDs.Insert(b.ID)
		if b.Size < 0 || b.PrefetchCost < 0 {
			return fmt.Errorf("bundle[%d]: size and prefetch_cost must be non-negative", i)
		}
	}

	functions := sets.New[string](s.Invocations...)
	instanceIDs := sets.New[string]()
	for i, inst := range s.Instances {
		if inst.Function == "" {
			return fmt.Errorf("instance[%d]: function is required", i)
		}
		if !unitIDs.Has(inst.Unit) {
			return fmt.Errorf("instance[%d]: unknown unit %d", i, inst.Unit)
		}
		if inst.ID != "" && instanceIDs.Has(inst.ID) {
			return fmt.Errorf("instance[%d]: duplicate id %q", i, inst.ID)
		}
		instanceIDs.Insert(inst.ID)
		functions.Insert(inst.Function)
	}
	for i, c := range s.Containers {
		if c.Function == "" {
			return fmt.Errorf("container[%d]: function is required", i)
		}
		if _, err := container.ParseState(c.State); err != nil {
			return fmt.Errorf("container[%d]: %w", i, err)
		}
		if c.Count < 0 {
			return fmt.Errorf("container[%d]: count must be non-negative, got %d", i, c.Count)
		}
		functions.Insert(c.Function)
	}
	for i, d := range s.Dependencies {
		if !functions.Has(d.Helper) || !functions.Has(d.Target) {
			return fmt.Errorf("dependency[%d]: unknown function in %q -> %q", i, d.Helper, d.Target)
		}
		if d.Helper == d.Target {
			return fmt.Errorf("dependency[%d]: function %q cannot help itself", i, d.Helper)
		}
	}

	if s.Policy != nil {
		if err := s.Policy.Validate(); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	return nil
}

func validateUnit(u *UnitSpec, idx int) error {
	prefix := fmt.Sprintf("unit[%d]", idx)
	if u.MaxCapacity < 0 || math.IsNaN(u.MaxCapacity) {
		return fmt.Errorf("%s: max_capacity must be non-negative, got %v", prefix, u.MaxCapacity)
	}
	if u.UsedCapacity < 0 || u.UsedCapacity > u.MaxCapacity {
		return fmt.Errorf("%s: used_capacity must be in [0, max_capacity], got %v", prefix, u.UsedCapacity)
	}
	if u.Replicas < 0 || u.MinReplicas < 0 || u.MaxReplicas < 0 {
		return fmt.Errorf("%s: replica counts must be non-negative", prefix)
	}
	if u.MaxReplicas > 0 && u.Replicas > u.MaxReplicas {
		return fmt.Errorf("%s: replicas (%d) exceed max_replicas (%d)", prefix, u.Replicas, u.MaxReplicas)
	}
	if u.MaxContainers < 0 {
		return fmt.Errorf("%s: max_containers must be non-negative, got %d", prefix, u.MaxContainers)
	}
	return nil
}

// Build validates s and converts it into a Topology.
func (s *TopologySpec) Build() (*Topology, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	topo := &Topology{
		Name:        s.Name,
		Units:       make([]sim.ResourceUnit, len(s.Units)),
		Requests:    make([]sim.ServiceRequest, len(s.Requests)),
		Bundles:     make([]sim.PrefetchBundle, len(s.Bundles)),
		Catalog:     make(sim.LayerCatalog, len(s.Layers)),
		Graph:       container.NewDependencyGraph(),
		Invocations: append([]string(nil), s.Invocations...),
	}

	unitIndex := make(map[int]int, len(s.Units))
	for i, u := range s.Units {
		unitIndex[u.ID] = i
		topo.Units[i] = sim.ResourceUnit{
			ID:              u.ID,
			Name:            u.Name,
			MaxCapacity:     u.MaxCapacity,
			UsedCapacity:    u.UsedCapacity,
			ComputationCost: u.ComputationCost,
			RetentionCost:   u.RetentionCost,
			PreparationCost: u.PreparationCost,
			NetworkLatency:  u.NetworkLatency,
			CPUUsage:        u.CPUUsage,
			Replicas:        u.Replicas,
			MinReplicas:     u.MinReplicas,
			MaxReplicas:     u.MaxReplicas,
			CPUFrequency:    u.CPUFrequency,
			Bandwidth:       u.Bandwidth,
			StorageCapacity: u.StorageCapacity,
			Distance:        u.Distance,
			MaxContainers:   u.MaxContainers,
			LocalLayers:     append([]int(nil), u.LocalLayers...),
		}
		if topo.Units[i].Name == "" {
			topo.Units[i].Name = fmt.Sprintf("unit_%d", u.ID)
		}
	}

	for _, l := range s.Layers {
		topo.Catalog[l.ID] = l.Size
	}
	images := make(map[int][]int, len(s.Images))
	for _, img := range s.Images {
		images[img.ID] = img.Layers
	}

	for i, r := range s.Requests {
		req := sim.ServiceRequest{
			ID:                     r.ID,
			Deadline:               r.Deadline,
			Load:                   r.Load,
			TransferCost:           r.TransferCost,
			PreparationCost:        r.PreparationCost,
			Demand:                 r.Demand,
			Distance:               r.Distance,
			DataSize:               r.DataSize,
			ComputationRequirement: r.ComputationRequirement,
		}
		if r.Image != nil {
			req.Layers = append([]int(nil), images[*r.Image]...)
		}
		topo.Requests[i] = req
	}

	for i, b := range s.Bundles {
		topo.Bundles[i] = sim.PrefetchBundle{ID: b.ID, Size: b.Size, PrefetchCost: b.PrefetchCost}
	}

	for i, inst := range s.Instances {
		id := inst.ID
		if id == "" {
			id = fmt.Sprintf("%s_%d", inst.Function, i)
		}
		topo.Instances = append(topo.Instances, sim.FunctionInstance{
			ID:       id,
			Function: inst.Function,
			Unit:     unitIndex[inst.Unit],
		})
	}

	for _, c := range s.Containers {
		state, _ := container.ParseState(c.State) // checked by Validate
		count := c.Count
		if count == 0 {
			count = 1
		}
		for range count {
			topo.Containers = append(topo.Containers, ContainerSeed{Function: c.Function, State: state, Idle: c.Idle})
		}
	}

	for _, d := range s.Dependencies {
		var err error
		if d.Mutual {
			err = topo.Graph.AddMutual(d.Helper, d.Target)
		} else {
			err = topo.Graph.AddEdge(d.Helper, d.Target)
		}
		if err != nil {
			return nil, fmt.Errorf("building dependency graph: %w", err)
		}
	}
	return topo, nil
}

// Clone returns a deep copy so one Topology can seed several runs.
// The dependency graph is shared; simulations never mutate it.
func (t *Topology) Clone() *Topology {
	out := &Topology{
		Name:        t.Name,
		Units:       make([]sim.ResourceUnit, len(t.Units)),
		Requests:    make([]sim.ServiceRequest, len(t.Requests)),
		Bundles:     append([]sim.PrefetchBundle(nil), t.Bundles...),
		Catalog:     make(sim.LayerCatalog, len(t.Catalog)),
		Instances:   append([]sim.FunctionInstance(nil), t.Instances...),
		Containers:  append([]ContainerSeed(nil), t.Containers...),
		Graph:       t.Graph,
		Invocations: append([]string(nil), t.Invocations...),
	}
	for i, u := range t.Units {
		u.LocalLayers = append([]int(nil), u.LocalLayers...)
		out.Units[i] = u
	}
	for i, r := range t.Requests {
		r.Layers = append([]int(nil), r.Layers...)
		out.Requests[i] = r
	}
	for k, v := range t.Catalog {
		out.Catalog[k] = v
	}
	return out
}
