// pipeline.go - stage definitions: the parsed, typed form of the
// single-key stage documents a caller submits ($match, $project, $group,
// $sort, $limit, $skip, $unwind, $lookup, $addFields/$set, $count),
// parsed into typed stage structs the planner can validate and rewrite.

package aggo

// StageKind is the closed set of pipeline stage types.
type StageKind int

const (
	StageMatch StageKind = iota
	StageProject
	StageGroup
	StageSort
	StageLimit
	StageSkip
	StageUnwind
	StageLookup
	StageAddFields
	StageCount
)

func (k StageKind) String() string {
	switch k {
	case StageMatch:
		return "$match"
	case StageProject:
		return "$project"
	case StageGroup:
		return "$group"
	case StageSort:
		return "$sort"
	case StageLimit:
		return "$limit"
	case StageSkip:
		return "$skip"
	case StageUnwind:
		return "$unwind"
	case StageLookup:
		return "$lookup"
	case StageAddFields:
		return "$addFields"
	case StageCount:
		return "$count"
	default:
		return "$unknown"
	}
}

// Stage is one parsed pipeline stage.
type Stage struct {
	Kind StageKind

	// $match
	MatchExpr Value

	// $project / $addFields / $set: ordered field -> expression. A field
	// mapped to Bool(false) (only valid in $project) excludes that field.
	Fields     []ProjectField
	Inclusive  bool // $project only: true = inclusion-style, false = exclusion-style

	// $group
	GroupID           Value // expression (often a field path or a document of expressions)
	Accumulators      []GroupAccumulator

	// $sort: ordered list of (field, ascending)
	SortKeys []SortKey

	// $limit / $skip
	N int64

	// $unwind
	UnwindPath                 string
	PreserveNullAndEmptyArrays bool
	IncludeArrayIndex          string // empty means omit

	// $lookup (equality-join variant only; sub-pipeline lookups are a
	// hard blocker forcing the compatibility fallback)
	LookupFrom         string
	LookupLocalField   string
	LookupForeignField string
	LookupAs           string
	LookupSubPipeline  bool  // true if this $lookup used the pipeline/let form
	LookupPipeline     []Value // raw (unparsed) sub-pipeline stage docs, subpipeline form only
	LookupLet          Value   // "let" bindings document, subpipeline form only

	// $count
	CountField string
}

// ProjectField is one output field of a $project/$addFields/$set stage.
type ProjectField struct {
	Name    string
	Expr    Value
	Exclude bool
}

// GroupAccumulator is one output field of a $group stage, e.g.
// {"total": {"$sum": "$amount"}}.
type GroupAccumulator struct {
	Field string
	Op    string // "$sum", "$avg", "$min", "$max", "$first", "$last", "$push", "$addToSet", "$count"
	Expr  Value
}

// SortKey is one field of a $sort stage's compound key.
type SortKey struct {
	Field     string
	Ascending bool
}

// ParseStage parses a single-key stage document into a Stage. It performs
// only shape validation; rewrite and tier selection happen in planner.go.
func ParseStage(doc Value) (Stage, error) {
	if doc.Kind() != KindObject || doc.AsObject().Len() != 1 {
		return Stage{}, NewEngineError(InvalidPipeline, "", "each pipeline stage must be a single-key document")
	}
	key := doc.AsObject().Keys()[0]
	body := doc.AsObject().Get(key)
	switch key {
	case "$match":
		return Stage{Kind: StageMatch, MatchExpr: body}, nil
	case "$project":
		return parseProjectLike(body, StageProject)
	case "$addFields", "$set":
		return parseProjectLike(body, StageAddFields)
	case "$group":
		return parseGroup(body)
	case "$sort":
		return parseSort(body)
	case "$limit":
		n, ok := body.Numeric()
		if !ok || n < 0 {
			return Stage{}, NewEngineError(InvalidPipeline, "$limit", "expects a non-negative number")
		}
		return Stage{Kind: StageLimit, N: int64(n)}, nil
	case "$skip":
		n, ok := body.Numeric()
		if !ok || n < 0 {
			return Stage{}, NewEngineError(InvalidPipeline, "$skip", "expects a non-negative number")
		}
		return Stage{Kind: StageSkip, N: int64(n)}, nil
	case "$unwind":
		return parseUnwind(body)
	case "$lookup":
		return parseLookup(body)
	case "$count":
		if body.Kind() != KindString || body.AsString() == "" {
			return Stage{}, NewEngineError(InvalidPipeline, "$count", "expects a non-empty field name string")
		}
		return Stage{Kind: StageCount, CountField: body.AsString()}, nil
	default:
		return Stage{}, NewEngineError(InvalidPipeline, key, "unknown pipeline stage")
	}
}

func parseProjectLike(body Value, kind StageKind) (Stage, error) {
	if body.Kind() != KindObject {
		return Stage{}, NewEngineError(InvalidPipeline, kind.String(), "expects a document")
	}
	st := Stage{Kind: kind}
	sawInclude, sawExclude := false, false
	for _, k := range body.AsObject().Keys() {
		v := body.AsObject().Get(k)
		if kind == StageProject && v.Kind() == KindBool {
			if v.AsBool() {
				sawInclude = true
				st.Fields = append(st.Fields, ProjectField{Name: k, Expr: String("$" + k)})
			} else {
				sawExclude = true
				st.Fields = append(st.Fields, ProjectField{Name: k, Exclude: true})
			}
			continue
		}
		if kind == StageProject && v.Kind() == KindInt {
			if v.AsInt() != 0 {
				sawInclude = true
				st.Fields = append(st.Fields, ProjectField{Name: k, Expr: String("$" + k)})
			} else {
				sawExclude = true
				st.Fields = append(st.Fields, ProjectField{Name: k, Exclude: true})
			}
			continue
		}
		sawInclude = true
		st.Fields = append(st.Fields, ProjectField{Name: k, Expr: v})
	}
	if kind == StageProject {
		if sawInclude && sawExclude {
			// _id: 0 alongside inclusions is the one standard exception;
			// anything else is ambiguous.
			onlyIDExcluded := true
			for _, f := range st.Fields {
				if f.Exclude && f.Name != "_id" {
					onlyIDExcluded = false
				}
			}
			if !onlyIDExcluded {
				return Stage{}, NewEngineError(InvalidPipeline, "$project", "cannot mix inclusion and exclusion")
			}
		}
		st.Inclusive = !sawExclude || sawInclude
	}
	return st, nil
}

func parseGroup(body Value) (Stage, error) {
	if body.Kind() != KindObject {
		return Stage{}, NewEngineError(InvalidPipeline, "$group", "expects a document")
	}
	if !body.AsObject().Has("_id") {
		return Stage{}, NewEngineError(InvalidPipeline, "$group", "requires an _id expression")
	}
	st := Stage{Kind: StageGroup, GroupID: body.AsObject().Get("_id")}
	for _, k := range body.AsObject().Keys() {
		if k == "_id" {
			continue
		}
		spec := body.AsObject().Get(k)
		if spec.Kind() != KindObject || spec.AsObject().Len() != 1 {
			return Stage{}, NewEngineError(InvalidPipeline, "$group", "accumulator "+k+" must be a single-operator document")
		}
		op := spec.AsObject().Keys()[0]
		st.Accumulators = append(st.Accumulators, GroupAccumulator{Field: k, Op: op, Expr: spec.AsObject().Get(op)})
	}
	return st, nil
}

func parseSort(body Value) (Stage, error) {
	if body.Kind() != KindObject {
		return Stage{}, NewEngineError(InvalidPipeline, "$sort", "expects a document")
	}
	st := Stage{Kind: StageSort}
	for _, k := range body.AsObject().Keys() {
		v := body.AsObject().Get(k)
		n, ok := v.Numeric()
		if !ok {
			return Stage{}, NewEngineError(InvalidPipeline, "$sort", "sort direction must be numeric")
		}
		st.SortKeys = append(st.SortKeys, SortKey{Field: k, Ascending: n > 0})
	}
	return st, nil
}

func parseUnwind(body Value) (Stage, error) {
	st := Stage{Kind: StageUnwind}
	switch body.Kind() {
	case KindString:
		st.UnwindPath = stripFieldPrefix(body.AsString())
	case KindObject:
		pathV := body.AsObject().Get("path")
		if pathV.Kind() != KindString {
			return Stage{}, NewEngineError(InvalidPipeline, "$unwind", "path must be a field path string")
		}
		st.UnwindPath = stripFieldPrefix(pathV.AsString())
		if body.AsObject().Has("preserveNullAndEmptyArrays") {
			st.PreserveNullAndEmptyArrays = body.AsObject().Get("preserveNullAndEmptyArrays").Truthy()
		}
		if body.AsObject().Has("includeArrayIndex") {
			st.IncludeArrayIndex = body.AsObject().Get("includeArrayIndex").AsString()
		}
	default:
		return Stage{}, NewEngineError(InvalidPipeline, "$unwind", "expects a field path string or options document")
	}
	if st.UnwindPath == "" {
		return Stage{}, NewEngineError(InvalidPipeline, "$unwind", "path must not be empty")
	}
	return st, nil
}

func stripFieldPrefix(s string) string {
	if len(s) > 0 && s[0] == '$' {
		return s[1:]
	}
	return s
}

func parseLookup(body Value) (Stage, error) {
	if body.Kind() != KindObject {
		return Stage{}, NewEngineError(InvalidPipeline, "$lookup", "expects a document")
	}
	obj := body.AsObject()
	if obj.Has("pipeline") {
		pipe := obj.Get("pipeline")
		var rawStages []Value
		if pipe.Kind() == KindArray {
			rawStages = pipe.AsArray()
		}
		return Stage{
			Kind:              StageLookup,
			LookupSubPipeline: true,
			LookupFrom:        obj.Get("from").AsString(),
			LookupAs:          obj.Get("as").AsString(),
			LookupPipeline:    rawStages,
			LookupLet:         obj.Get("let"),
		}, nil
	}
	from := obj.Get("from")
	local := obj.Get("localField")
	foreign := obj.Get("foreignField")
	as := obj.Get("as")
	if from.Kind() != KindString || local.Kind() != KindString || foreign.Kind() != KindString || as.Kind() != KindString {
		return Stage{}, NewEngineError(InvalidPipeline, "$lookup", "requires from/localField/foreignField/as strings")
	}
	return Stage{
		Kind:               StageLookup,
		LookupFrom:         from.AsString(),
		LookupLocalField:   local.AsString(),
		LookupForeignField: foreign.AsString(),
		LookupAs:           as.AsString(),
	}, nil
}

// ParsePipeline parses an ordered list of stage documents.
func ParsePipeline(stages []Value) ([]Stage, error) {
	out := make([]Stage, len(stages))
	for i, s := range stages {
		st, err := ParseStage(s)
		if err != nil {
			if pe, ok := err.(*EngineError); ok {
				return nil, &PlanError{EngineError: pe, StageIndex: i}
			}
			return nil, err
		}
		out[i] = st
	}
	return out, nil
}
