package defs

// Unify merges several per-rank local Managers into one unified
// Manager, processing kinds in unificationOrder so that by the time a
// kind's records are remapped, every handle they reference (which, by
// construction, belongs to an earlier kind in the order) has already
// been unified (spec §4.8).
//
// It returns, for each input Manager, a LocalToUnified table giving
// that rank's local-handle -> unified-handle mapping per kind; this is
// the table adapters consult when writing trace records so that
// definition references in the written-out event stream always name
// unified handles (spec §4.8 step 5).
func Unify(locals []*Manager) (unified *Manager, mapping []*LocalToUnified) {
	unified = NewManager()
	mapping = make([]*LocalToUnified, len(locals))
	for i := range locals {
		mapping[i] = newLocalToUnified()
	}

	for _, kind := range unificationOrder {
		for rank, local := range locals {
			unifyKind(kind, local, unified, mapping[rank])
		}
	}
	return unified, mapping
}

// LocalToUnified holds one rank's local->unified handle tables, one
// per kind, populated by Unify.
type LocalToUnified struct {
	tables [numKinds]map[Handle]Handle
}

func newLocalToUnified() *LocalToUnified {
	l := &LocalToUnified{}
	for i := range l.tables {
		l.tables[i] = make(map[Handle]Handle)
	}
	return l
}

// Map returns the unified handle corresponding to local handle h of
// kind, or Invalid if h is Invalid or unmapped.
func (l *LocalToUnified) Map(kind Kind, h Handle) Handle {
	if h == Invalid {
		return Invalid
	}
	if u, ok := l.tables[kind][h]; ok {
		return u
	}
	return Invalid
}

func (l *LocalToUnified) set(kind Kind, local, unified Handle) {
	l.tables[kind][local] = unified
}

func unifyKind(kind Kind, local, unified *Manager, m *LocalToUnified) {
	switch kind {
	case KindString:
		local.strings.ForEach(func(idx int, r *StringRecord) {
			u := unified.InternString(string(r.Bytes))
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindSourceFile:
		local.sourceFiles.ForEach(func(idx int, r *SourceFileRecord) {
			u := unified.NewSourceFile(m.Map(KindString, r.Name))
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindSystemTreeNode:
		local.systemTreeNodes.ForEach(func(idx int, r *SystemTreeNodeRecord) {
			u := unified.NewSystemTreeNode(
				m.Map(KindSystemTreeNode, r.Parent),
				m.Map(KindString, r.Class),
				m.Map(KindString, r.Name),
				r.Domain,
			)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindLocationGroup:
		local.locationGroups.ForEach(func(idx int, r *LocationGroupRecord) {
			u := unified.NewLocationGroup(m.Map(KindSystemTreeNode, r.Parent), r.Type, m.Map(KindString, r.Name))
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindLocation:
		local.locations.ForEach(func(idx int, r *LocationRecord) {
			u := unified.NewLocation(m.Map(KindLocationGroup, r.Group), r.Type, m.Map(KindString, r.Name), r.Paradigm)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindGroup, KindComm, KindRmaWin:
		t := groupLikeTable(local, kind)
		t.ForEach(func(idx int, r *GroupLikeRecord) {
			members := make([]Handle, len(r.Members))
			for i, mem := range r.Members {
				members[i] = m.Map(KindLocation, mem)
			}
			u := unified.NewGroupLike(kind, members, m.Map(kind, r.Parent), r.Flags)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindRegion:
		local.regions.ForEach(func(idx int, r *RegionRecord) {
			u := unified.NewRegion(
				m.Map(KindString, r.Name),
				m.Map(KindString, r.CanonicalName),
				m.Map(KindSourceFile, r.File),
				r.BeginLine, r.EndLine, r.Paradigm, r.Role, r.Flags,
			)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindCallingContext:
		// Processed in insertion order, which for a CCT is always
		// root-before-child (spec §4.4), so a node's Parent is already
		// mapped by the time the node itself is unified.
		local.callingContexts.ForEach(func(idx int, r *CallingContextRecord) {
			u := unified.NewCallingContext(
				m.Map(KindRegion, r.Region),
				m.Map(KindString, r.SourceLocation),
				m.Map(KindCallingContext, r.Parent),
			)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindMetric, KindSamplingSet:
		t := metricTable(local, kind)
		t.ForEach(func(idx int, r *MetricRecord) {
			members := make([]Handle, len(r.Members))
			for i, mem := range r.Members {
				members[i] = m.Map(KindMetric, mem)
			}
			u := unified.NewMetricLike(kind, m.Map(KindString, r.Name), m.Map(KindString, r.Unit), r.Type, r.Base, r.Exponent, r.Mode, members)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindParameter:
		local.parameters.ForEach(func(idx int, r *ParameterRecord) {
			u := unified.NewParameter(m.Map(KindString, r.Name), r.Type)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindAttribute:
		local.attributes.ForEach(func(idx int, r *AttributeRecord) {
			u := unified.NewAttribute(m.Map(KindString, r.Name), m.Map(KindString, r.Description), r.Type)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	case KindInterruptGenerator:
		local.interruptGenerators.ForEach(func(idx int, r *InterruptGeneratorRecord) {
			u := unified.NewInterruptGenerator(m.Map(KindString, r.Name), r.Mode, r.Base, r.Exponent, r.Period)
			r.Unified = u
			m.set(kind, handleFromIdx(idx), u)
		})
	}
}
