package defs

// Every record below stores the attributes spec §3's data-model table
// lists for its kind, plus the Unified field every definition carries
// (spec: "a definition's unified field is either invalid or a handle
// into the unified manager; once set, it does not change"). String
// attributes are stored as Handle references into the String kind —
// "all other definitions store string handles, never raw strings, so
// equality reduces to handle comparison" (spec §4.3).

type StringRecord struct {
	Bytes   []byte
	Unified Handle
}

func (r StringRecord) String() string { return string(r.Bytes) }

type SystemTreeNodeRecord struct {
	Parent     Handle
	Class      Handle // string
	Name       Handle // string
	Domain     uint64 // bitset
	Properties map[string]string
	Unified    Handle
}

// LocationGroupType enumerates spec §3's {process, accelerator-context, ...}.
type LocationGroupType int

const (
	LocationGroupProcess LocationGroupType = iota
	LocationGroupAcceleratorContext
)

type LocationGroupRecord struct {
	Parent  Handle // SystemTreeNode
	Type    LocationGroupType
	Name    Handle // string
	Unified Handle
}

// LocationType enumerates spec §3's {CPU-thread, GPU, metric, accelerator-stream}.
type LocationType int

const (
	LocationCPUThread LocationType = iota
	LocationGPU
	LocationMetric
	LocationAcceleratorStream
)

type LocationRecord struct {
	Group     Handle // LocationGroup
	Type      LocationType
	Name      Handle // string
	Paradigm  string
	NumEvents uint64
	Unified   Handle
}

type SourceFileRecord struct {
	Name    Handle // string
	Unified Handle
}

// RegionRole and RegionFlag mirror the role/flags attributes spec §3
// lists without pinning down every adapter-specific value (out of
// scope per §1); adapters pass through whatever their paradigm needs.
//
// The three phase roles mirror scorep_profile_phase.c's
// SCOREP_REGION_PHASE/DYNAMIC_PHASE/DYNAMIC_LOOP_PHASE: a region
// carrying one of these gets hoisted to the thread root during profile
// postprocessing instead of staying wherever the call path nested it.
type RegionRole string

const (
	RegionRolePhase            RegionRole = "phase"
	RegionRoleDynamicPhase     RegionRole = "dynamic_phase"
	RegionRoleDynamicLoopPhase RegionRole = "dynamic_loop_phase"
)

// IsPhase reports whether r is one of the three phase roles profile
// postprocessing hoists to the thread root.
func (r RegionRole) IsPhase() bool {
	return r == RegionRolePhase || r == RegionRoleDynamicPhase || r == RegionRoleDynamicLoopPhase
}

type RegionFlag uint32

type RegionRecord struct {
	Name          Handle // string, demangled
	CanonicalName Handle // string, mangled
	File          Handle // SourceFile
	BeginLine     uint32
	EndLine       uint32
	Paradigm      string
	Role          RegionRole
	Flags         RegionFlag
	Unified       Handle
}

// GroupLikeRecord backs Group, Comm, and RmaWin (spec §3: "member list
// of location handles, parent, flags" for all three).
type GroupLikeRecord struct {
	Members []Handle // Location handles
	Parent  Handle
	Flags   uint32
	Unified Handle
}

// MetricMode/MetricValueType mirror spec §3's metric attributes
// without over-specifying adapter-only vocabulary.
type MetricMode string
type MetricValueType string

// MetricRecord backs both Metric and SamplingSet (spec §3: "name, unit,
// type, base, exponent, mode, member metric list" for both).
type MetricRecord struct {
	Name     Handle // string
	Unit     Handle // string
	Type     MetricValueType
	Base     uint32
	Exponent int32
	Mode     MetricMode
	Members  []Handle // member Metric handles, for SamplingSet
	Unified  Handle
}

type ParameterType int

const (
	ParameterInt64 ParameterType = iota
	ParameterUint64
	ParameterString
)

type ParameterRecord struct {
	Name    Handle // string
	Type    ParameterType
	Unified Handle
}

type AttributeRecord struct {
	Name        Handle // string
	Description Handle // string
	Type        string
	Unified     Handle
}

// CallingContextRecord forms the CCT (spec §3): region, source-code
// location, and a parent handle that must already exist (CCTs are
// created root-first as the call stack grows).
type CallingContextRecord struct {
	Region         Handle
	SourceLocation Handle // string, opaque per spec §1 ("does not resolve... except as opaque identifiers")
	Parent         Handle // CallingContext, Invalid for the CCT root
	Unified        Handle
}

type InterruptGeneratorRecord struct {
	Name     Handle // string
	Mode     MetricMode
	Base     uint32
	Exponent int32
	Period   uint64
	Unified  Handle
}
