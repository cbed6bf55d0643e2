package expr

import (
	"math"
	"strconv"
)

// Env is what a scoring expression can see while it runs against one document.
type Env struct {
	Doc   map[string]any
	Stats *Stats
}

// Num is a numeric expression.
type Num interface {
	num(env *Env) float64
	write(w *writer)
}

// Str is a string expression.
type Str interface {
	str(env *Env) (string, bool)
	write(w *writer)
}

// Bool is a predicate.
type Bool interface {
	test(env *Env) bool
	write(w *writer)
}

// Lit is a numeric literal.
type Lit float64

func (l Lit) num(*Env) float64 { return float64(l) }

func (l Lit) write(w *writer) {
	w.raw(strconv.FormatFloat(float64(l), 'f', -1, 64))
}

// Param is a named value passed to the script instead of being inlined.
type Param struct {
	Name  string
	Value any
}

func P(name string, value any) *Param {
	return &Param{Name: name, Value: value}
}

func (p *Param) num(*Env) float64 {
	f, _ := ToFloat(p.Value)
	return f
}

func (p *Param) str(*Env) (string, bool) {
	return ToString(p.Value)
}

func (p *Param) write(w *writer) {
	w.param(p)
}

// Field reads the first value of a document field.
type Field struct {
	Path string
}

func F(path string) Field {
	return Field{Path: path}
}

func (f Field) num(env *Env) float64 {
	v, ok := Lookup(env.Doc, f.Path)
	if !ok {
		return 0
	}
	item, ok := first(v)
	if !ok {
		return 0
	}
	out, _ := ToFloat(item)
	return out
}

func (f Field) str(env *Env) (string, bool) {
	v, ok := Lookup(env.Doc, f.Path)
	if !ok {
		return "", false
	}
	item, ok := first(v)
	if !ok {
		return "", false
	}
	return ToString(item)
}

func (f Field) write(w *writer) {
	w.raw("doc['" + f.Path + "'].value")
}

type Binary struct {
	Op   byte
	L, R Num
}

func Add(l, r Num) Num { return Binary{Op: '+', L: l, R: r} }
func Sub(l, r Num) Num { return Binary{Op: '-', L: l, R: r} }
func Mul(l, r Num) Num { return Binary{Op: '*', L: l, R: r} }
func Div(l, r Num) Num { return Binary{Op: '/', L: l, R: r} }

func (b Binary) num(env *Env) float64 {
	l, r := b.L.num(env), b.R.num(env)
	switch b.Op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		if r == 0 {
			return 0
		}
		return l / r
	}
	return 0
}

const safeDivHelper = `double safeDiv(double n, double d) { return d == 0 ? 0 : n / d; }`

func (b Binary) write(w *writer) {
	if b.Op == '/' {
		w.helper("safeDiv", safeDivHelper)
		w.raw("safeDiv(")
		b.L.write(w)
		w.raw(", ")
		b.R.write(w)
		w.raw(")")
		return
	}
	w.raw("(")
	b.L.write(w)
	w.raw(" " + string(b.Op) + " ")
	b.R.write(w)
	w.raw(")")
}

// Call applies one of the Math functions both dialects share.
type Call struct {
	Fn   string
	Args []Num
}

func Abs(x Num) Num    { return Call{Fn: "abs", Args: []Num{x}} }
func Max(a, b Num) Num { return Call{Fn: "max", Args: []Num{a, b}} }
func Min(a, b Num) Num { return Call{Fn: "min", Args: []Num{a, b}} }

func (c Call) num(env *Env) float64 {
	args := make([]float64, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.num(env)
	}
	switch c.Fn {
	case "abs":
		return math.Abs(args[0])
	case "max":
		return math.Max(args[0], args[1])
	case "min":
		return math.Min(args[0], args[1])
	case "exp":
		return math.Exp(args[0])
	case "log":
		return math.Log(args[0])
	}
	return 0
}

func (c Call) write(w *writer) {
	w.raw("Math." + c.Fn + "(")
	for i, a := range c.Args {
		if i > 0 {
			w.raw(", ")
		}
		a.write(w)
	}
	w.raw(")")
}

type Cond struct {
	If         Bool
	Then, Else Num
}

func If(c Bool, then, els Num) Num { return Cond{If: c, Then: then, Else: els} }

func (c Cond) num(env *Env) float64 {
	if c.If.test(env) {
		return c.Then.num(env)
	}
	return c.Else.num(env)
}

func (c Cond) write(w *writer) {
	w.raw("(")
	c.If.write(w)
	w.raw(" ? ")
	c.Then.write(w)
	w.raw(" : ")
	c.Else.write(w)
	w.raw(")")
}

type Compare struct {
	Op   string
	L, R Num
}

func Lt(l, r Num) Bool { return Compare{Op: "<", L: l, R: r} }
func Le(l, r Num) Bool { return Compare{Op: "<=", L: l, R: r} }
func Gt(l, r Num) Bool { return Compare{Op: ">", L: l, R: r} }
func Ge(l, r Num) Bool { return Compare{Op: ">=", L: l, R: r} }

func (c Compare) test(env *Env) bool {
	l, r := c.L.num(env), c.R.num(env)
	switch c.Op {
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "==":
		return l == r
	}
	return false
}

func (c Compare) write(w *writer) {
	w.raw("(")
	c.L.write(w)
	w.raw(" " + c.Op + " ")
	c.R.write(w)
	w.raw(")")
}

type Equals struct {
	L, R Str
}

func (e Equals) test(env *Env) bool {
	l, ok1 := e.L.str(env)
	r, ok2 := e.R.str(env)
	return ok1 && ok2 && l == r
}

func (e Equals) write(w *writer) {
	e.L.write(w)
	w.raw(".equals(")
	e.R.write(w)
	w.raw(")")
}

// Contains tests membership of a string in a list param.
type Contains struct {
	List *Param
	Item Str
}

func (c Contains) test(env *Env) bool {
	item, ok := c.Item.str(env)
	if !ok {
		return false
	}
	for _, v := range Values(c.List.Value) {
		if s, _ := ToString(v); s == item {
			return true
		}
	}
	return false
}

func (c Contains) write(w *writer) {
	c.List.write(w)
	w.raw(".contains(")
	c.Item.write(w)
	w.raw(")")
}

// IndexOf is the position of a string in a list param, or -1.
type IndexOf struct {
	List *Param
	Item Str
}

func (x IndexOf) num(env *Env) float64 {
	item, ok := x.Item.str(env)
	if !ok {
		return -1
	}
	for i, v := range Values(x.List.Value) {
		if s, _ := ToString(v); s == item {
			return float64(i)
		}
	}
	return -1
}

func (x IndexOf) write(w *writer) {
	x.List.write(w)
	w.raw(".indexOf(")
	x.Item.write(w)
	w.raw(")")
}

type ListSize struct {
	List *Param
}

func (l ListSize) num(*Env) float64 {
	return float64(len(Values(l.List.Value)))
}

func (l ListSize) write(w *writer) {
	l.List.write(w)
	w.raw(".size()")
}

// DocSize counts the distinct values of a keyword field.
type DocSize struct {
	Path string
}

func (d DocSize) num(env *Env) float64 {
	v, ok := Lookup(env.Doc, d.Path)
	if !ok {
		return 0
	}
	return float64(len(distinct(Values(v))))
}

func (d DocSize) write(w *writer) {
	w.raw("doc['" + d.Path + "'].size()")
}

// IntersectSize counts query list values present in a keyword field.
type IntersectSize struct {
	Query *Param
	Path  string
}

const intersectHelper = `int intersectSize(def q, def d) { int n = 0; for (def v : q) { if (d.contains(v)) { n++; } } return n; }`

func (x IntersectSize) num(env *Env) float64 {
	v, ok := Lookup(env.Doc, x.Path)
	if !ok {
		return 0
	}
	have := distinct(Values(v))
	n := 0
	for q := range distinct(Values(x.Query.Value)) {
		if _, ok := have[q]; ok {
			n++
		}
	}
	return float64(n)
}

func (x IntersectSize) write(w *writer) {
	w.helper("intersectSize", intersectHelper)
	w.raw("intersectSize(")
	x.Query.write(w)
	w.raw(", doc['" + x.Path + "'])")
}

func distinct(vals []any) map[string]struct{} {
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if s, ok := ToString(v); ok {
			out[s] = struct{}{}
		}
	}
	return out
}

// RowLookup reads a similarity row param at the field's value, 0 when absent.
type RowLookup struct {
	Row *Param
	Key Str
}

func (r RowLookup) num(env *Env) float64 {
	key, ok := r.Key.str(env)
	if !ok {
		return 0
	}
	switch row := r.Row.Value.(type) {
	case map[string]float64:
		return row[key]
	case map[string]any:
		f, _ := ToFloat(row[key])
		return f
	}
	return 0
}

func (r RowLookup) write(w *writer) {
	w.raw("(")
	r.Row.write(w)
	w.raw(".containsKey(")
	r.Key.write(w)
	w.raw(") ? ")
	r.Row.write(w)
	w.raw(".get(")
	r.Key.write(w)
	w.raw(") : 0)")
}

// CosineField is the cosine between a query vector param and a dense vector field.
type CosineField struct {
	Query *Param
	Path  string
}

func (c CosineField) num(env *Env) float64 {
	v, ok := Lookup(env.Doc, c.Path)
	if !ok {
		return 0
	}
	doc, ok := ToVector(v)
	if !ok {
		return 0
	}
	q, _ := ToVector(c.Query.Value)
	return CosineSimilarity(q, doc)
}

func (c CosineField) write(w *writer) {
	w.raw("cosineSimilarity(")
	c.Query.write(w)
	w.raw(", doc['" + c.Path + "'])")
}

// MaxCosineMean averages, over the query vectors, the best cosine against the
// nested rep vectors stored under Attr.
type MaxCosineMean struct {
	Query *Param
	Attr  string
}

const maxCosineHelper = `double cosine(def a, def b) { double dot = 0; double na = 0; double nb = 0; for (int i = 0; i < a.size() && i < b.size(); i++) { dot += a[i] * b[i]; na += a[i] * a[i]; nb += b[i] * b[i]; } if (na == 0 || nb == 0) { return 0; } return dot / (Math.sqrt(na) * Math.sqrt(nb)); } ` +
	`double maxCosineMean(def q, def source, def attr) { def stored = source[attr]; if (stored == null || stored.rep == null || stored.rep.size() == 0 || q.size() == 0) { return 0; } double total = 0; for (def qv : q) { double best = -1; for (def item : stored.rep) { best = Math.max(best, cosine(qv, item.rep)); } total += best; } return total / q.size(); }`

func (m MaxCosineMean) num(env *Env) float64 {
	stored, ok := Lookup(env.Doc, m.Attr+".rep")
	if !ok {
		return 0
	}
	items := Values(stored)
	queries := vectorList(m.Query.Value)
	if len(items) == 0 || len(queries) == 0 {
		return 0
	}
	total := 0.0
	for _, q := range queries {
		best := -1.0
		for _, item := range items {
			rep, ok := asMap(item)
			if !ok {
				continue
			}
			vec, ok := ToVector(rep["rep"])
			if !ok {
				continue
			}
			best = math.Max(best, CosineSimilarity(q, vec))
		}
		total += best
	}
	return total / float64(len(queries))
}

func vectorList(v any) [][]float64 {
	var out [][]float64
	switch t := v.(type) {
	case [][]float64:
		return t
	case [][]float32:
		for _, vec := range t {
			f, _ := ToVector(vec)
			out = append(out, f)
		}
	case []any:
		for _, item := range t {
			if f, ok := ToVector(item); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

func (m MaxCosineMean) write(w *writer) {
	w.helper("maxCosineMean", maxCosineHelper)
	w.raw("maxCosineMean(")
	m.Query.write(w)
	w.raw(", params._source, '" + m.Attr + "')")
}

type DecayTarget int

const (
	DecayNumeric DecayTarget = iota
	DecayDate
	DecayGeo
)

// Decay is an exponential decay of the distance between a field and an origin.
// Scale and Offset are the wire values; ScaleBase and OffsetBase are the same
// amounts in the target's base unit.
type Decay struct {
	Target     DecayTarget
	Origin     *Param
	Scale      *Param
	Offset     *Param
	Decay      *Param
	ScaleBase  float64
	OffsetBase float64
	Path       string
}

func (d Decay) num(env *Env) float64 {
	v, ok := Lookup(env.Doc, d.Path)
	if !ok {
		return 0
	}
	var dist float64
	switch d.Target {
	case DecayDate:
		item, _ := first(v)
		val, ok1 := ParseDate(item)
		origin, ok2 := ParseDate(d.Origin.Value)
		if !ok1 || !ok2 {
			return 0
		}
		dist = math.Abs(float64(val - origin))
	case DecayGeo:
		lat1, lon1, ok1 := ParseGeo(v)
		lat2, lon2, ok2 := ParseGeo(d.Origin.Value)
		if !ok1 || !ok2 {
			return 0
		}
		dist = haversine(lat1, lon1, lat2, lon2)
	default:
		item, _ := first(v)
		val, ok1 := ToFloat(item)
		origin, ok2 := ToFloat(d.Origin.Value)
		if !ok1 || !ok2 {
			return 0
		}
		dist = math.Abs(val - origin)
	}
	decay, _ := ToFloat(d.Decay.Value)
	if d.ScaleBase <= 0 || decay <= 0 || decay >= 1 {
		return 0
	}
	lambda := math.Log(decay) / d.ScaleBase
	return math.Exp(lambda * math.Max(0, dist-d.OffsetBase))
}

func (d Decay) write(w *writer) {
	switch d.Target {
	case DecayDate:
		w.raw("decayDateExp(")
	case DecayGeo:
		w.raw("decayGeoExp(")
	default:
		w.raw("decayNumericExp(")
	}
	d.Origin.write(w)
	w.raw(", ")
	d.Scale.write(w)
	w.raw(", ")
	d.Offset.write(w)
	w.raw(", ")
	d.Decay.write(w)
	w.raw(", doc['" + d.Path + "'].value)")
}

// TextScore is the store's relevance score of Query against an analysed field.
type TextScore struct {
	Path  string
	Query string
}

func (t TextScore) num(env *Env) float64 {
	if env.Stats == nil {
		return 0
	}
	return env.Stats.BM25(env.Doc, t.Path, t.Query)
}

func (t TextScore) write(w *writer) {
	w.raw("_score")
}
