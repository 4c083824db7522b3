package geometry

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// defaultGlyphWidth is used, in thousandths of an em, when a font has no
// width for a code.
const defaultGlyphWidth = 500.0

// textState holds the text parameters saved and restored with q/Q.
type textState struct {
	font      *fontInfo
	size      float64
	charSpace float64
	wordSpace float64
	hScale    float64
	leading   float64
}

type graphicsState struct {
	ctm  Matrix
	text textState
}

type fontInfo struct {
	enc     pdf.TextEncoding
	font    pdf.Font
	twoByte bool
}

// stopIteration unwinds pdf.Interpret when the consumer stops ranging.
type stopIteration struct{}

// interpreter tracks the text and line matrices across operators and
// reports one fragment per text-showing operator.
type interpreter struct {
	page  pdf.Page
	opts  options
	yield func(Fragment) bool

	fonts   map[string]*fontInfo
	gs      graphicsState
	gsStack []graphicsState
	tm      Matrix
	tlm     Matrix

	// yielding is set while control is in the consumer's loop body
	yielding bool
}

func newInterpreter(page pdf.Page, opts options, yield func(Fragment) bool) *interpreter {
	return &interpreter{
		page:  page,
		opts:  opts,
		yield: yield,
		fonts: make(map[string]*fontInfo),
		gs: graphicsState{
			ctm:  Identity(),
			text: textState{hScale: 1},
		},
		tm:  Identity(),
		tlm: Identity(),
	}
}

func (in *interpreter) run() (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if in.yielding {
			panic(r)
		}
		if _, ok := r.(stopIteration); ok {
			err = nil
			return
		}
		err = fmt.Errorf("%v", r)
	}()

	contents := in.page.V.Key("Contents")
	switch contents.Kind() {
	case pdf.Null:
		return nil
	case pdf.Stream:
		pdf.Interpret(contents, in.do)
	case pdf.Array:
		for i := range contents.Len() {
			part := contents.Index(i)
			if part.Kind() != pdf.Stream {
				return fmt.Errorf("contents element %d is %v, not a stream", i, part.Kind())
			}
			pdf.Interpret(part, in.do)
		}
	default:
		return fmt.Errorf("unsupported contents kind %v", contents.Kind())
	}
	return nil
}

func (in *interpreter) do(stk *pdf.Stack, op string) {
	n := stk.Len()
	args := make([]pdf.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}

	ts := &in.gs.text
	switch op {
	case "q":
		in.gsStack = append(in.gsStack, in.gs)
	case "Q":
		if len(in.gsStack) > 0 {
			in.gs = in.gsStack[len(in.gsStack)-1]
			in.gsStack = in.gsStack[:len(in.gsStack)-1]
		}
	case "cm":
		if m, ok := matrixArgs(args); ok {
			in.gs.ctm = m.Multiply(in.gs.ctm)
		}
	case "BT":
		in.tm, in.tlm = Identity(), Identity()
	case "Tf":
		if len(args) == 2 && args[0].Kind() == pdf.Name && isNumber(args[1]) {
			ts.font = in.font(args[0].Name())
			ts.size = args[1].Float64()
		}
	case "Tc":
		if v, ok := numberArg(args); ok {
			ts.charSpace = v
		}
	case "Tw":
		if v, ok := numberArg(args); ok {
			ts.wordSpace = v
		}
	case "Tz":
		if v, ok := numberArg(args); ok {
			ts.hScale = v / 100
		}
	case "TL":
		if v, ok := numberArg(args); ok {
			ts.leading = v
		}
	case "Td":
		if len(args) == 2 && isNumber(args[0]) && isNumber(args[1]) {
			in.moveText(args[0].Float64(), args[1].Float64())
		}
	case "TD":
		if len(args) == 2 && isNumber(args[0]) && isNumber(args[1]) {
			ts.leading = -args[1].Float64()
			in.moveText(args[0].Float64(), args[1].Float64())
		}
	case "Tm":
		if m, ok := matrixArgs(args); ok {
			in.tm, in.tlm = m, m
		}
	case "T*":
		in.moveText(0, -ts.leading)
	case "Tj":
		if len(args) == 1 {
			in.show(args[0])
		}
	case "'":
		if len(args) == 1 {
			in.moveText(0, -ts.leading)
			in.show(args[0])
		}
	case "\"":
		if len(args) == 3 && isNumber(args[0]) && isNumber(args[1]) {
			ts.wordSpace = args[0].Float64()
			ts.charSpace = args[1].Float64()
			in.moveText(0, -ts.leading)
			in.show(args[2])
		}
	case "TJ":
		if len(args) == 1 && args[0].Kind() == pdf.Array {
			in.showArray(args[0])
		}
	}
}

func (in *interpreter) moveText(tx, ty float64) {
	in.tlm = Translate(tx, ty).Multiply(in.tlm)
	in.tm = in.tlm
}

func (in *interpreter) show(v pdf.Value) {
	if v.Kind() != pdf.String {
		return
	}
	start := in.tm
	raw := v.RawString()
	text := in.decode(raw)
	in.advance(raw)
	in.emit(text, start)
}

func (in *interpreter) showArray(arr pdf.Value) {
	start := in.tm
	var sb strings.Builder
	for i := range arr.Len() {
		item := arr.Index(i)
		switch {
		case item.Kind() == pdf.String:
			raw := item.RawString()
			sb.WriteString(in.decode(raw))
			in.advance(raw)
		case isNumber(item):
			adj := item.Float64()
			ts := in.gs.text
			in.tm = Translate(-adj/1000*ts.size*ts.hScale, 0).Multiply(in.tm)
			if in.opts.wordGap > 0 && adj <= -in.opts.wordGap && sb.Len() > 0 && !strings.HasSuffix(sb.String(), " ") {
				sb.WriteByte(' ')
			}
		}
	}
	in.emit(sb.String(), start)
}

func (in *interpreter) emit(text string, tm Matrix) {
	if strings.TrimSpace(text) == "" {
		return
	}
	m := tm
	if in.opts.applyCTM {
		m = tm.Multiply(in.gs.ctm)
	}
	x, y := m.Translation()
	in.yielding = true
	more := in.yield(Fragment{Text: text, X: x, Y: y, FontSize: in.gs.text.size})
	in.yielding = false
	if !more {
		panic(stopIteration{})
	}
}

// advance moves the text matrix past the glyphs of raw.
func (in *interpreter) advance(raw string) {
	ts := in.gs.text
	step := 1
	if ts.font != nil && ts.font.twoByte {
		step = 2
	}
	for i := 0; i+step <= len(raw); i += step {
		code := int(raw[i])
		if step == 2 {
			code = code<<8 | int(raw[i+1])
		}
		w := 0.0
		if ts.font != nil && step == 1 {
			w = ts.font.font.Width(code)
		}
		if w <= 0 {
			w = defaultGlyphWidth
		}
		tx := w / 1000 * ts.size
		tx += ts.charSpace
		if step == 1 && code == ' ' {
			tx += ts.wordSpace
		}
		in.tm = Translate(tx*ts.hScale, 0).Multiply(in.tm)
	}
}

func (in *interpreter) decode(raw string) string {
	font := in.gs.text.font
	if font == nil || font.enc == nil {
		return latin1(raw)
	}
	return font.enc.Decode(raw)
}

func (in *interpreter) font(name string) *fontInfo {
	if fi, ok := in.fonts[name]; ok {
		return fi
	}
	f := in.page.Font(name)
	fi := &fontInfo{font: f}
	if !f.V.IsNull() {
		fi.enc = f.Encoder()
		fi.twoByte = f.V.Key("Subtype").Name() == "Type0"
	}
	in.fonts[name] = fi
	return fi
}

func latin1(raw string) string {
	runes := make([]rune, len(raw))
	for i := range len(raw) {
		runes[i] = rune(raw[i])
	}
	return string(runes)
}

func isNumber(v pdf.Value) bool {
	k := v.Kind()
	return k == pdf.Integer || k == pdf.Real
}

func numberArg(args []pdf.Value) (float64, bool) {
	if len(args) != 1 || !isNumber(args[0]) {
		return 0, false
	}
	return args[0].Float64(), true
}

func matrixArgs(args []pdf.Value) (Matrix, bool) {
	var m Matrix
	if len(args) != 6 {
		return m, false
	}
	for i, a := range args {
		if !isNumber(a) {
			return m, false
		}
		m[i] = a.Float64()
	}
	return m, true
}
