package pdfdoc

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdffont "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/wudi/pdfoverlay/builder"
	"github.com/wudi/pdfoverlay/contentstream"
	"github.com/wudi/pdfoverlay/geo"
	"github.com/wudi/pdfoverlay/observability"
)

// Box is a page's visible area in native PDF space (bottom-left origin).
type Box struct {
	LLX, LLY, URX, URY float64
}

func (b Box) Width() float64  { return b.URX - b.LLX }
func (b Box) Height() float64 { return b.URY - b.LLY }

// Overlaps reports whether b and o share area.
func (b Box) Overlaps(o Box) bool {
	return b.LLX < o.URX && o.LLX < b.URX && b.LLY < o.URY && o.LLY < b.URY
}

// Document is one opened PDF. Drawing accumulates per page and is written
// into the page content by Save. Not safe for concurrent use.
type Document struct {
	ctx    *model.Context
	logger observability.Logger

	pages  map[int]*pageState
	fonts  map[string]types.IndirectRef
	images map[[sha256.Size]byte]types.IndirectRef
	alphas map[string]types.IndirectRef

	widgets    []*widget
	discovered bool

	textBoxes map[int][]Box
}

func newDocument(ctx *model.Context, logger observability.Logger) *Document {
	return &Document{
		ctx:       ctx,
		logger:    observability.OrNop(logger),
		pages:     map[int]*pageState{},
		fonts:     map[string]types.IndirectRef{},
		images:    map[[sha256.Size]byte]types.IndirectRef{},
		alphas:    map[string]types.IndirectRef{},
		textBoxes: map[int][]Box{},
	}
}

func (d *Document) PageCount() int { return d.ctx.PageCount }

// PageBox returns the crop box of page, or its media box when there is none.
// Page rotation is not applied.
func (d *Document) PageBox(page int) (Box, error) {
	ps, err := d.page(page)
	if err != nil {
		return Box{}, err
	}
	return ps.box, nil
}

// Content returns the decoded content of page as saved, without pending
// drawing.
func (d *Document) Content(page int) ([]byte, error) {
	if page < 1 || page > d.ctx.PageCount {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	dict, _, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return nil, err
	}
	return d.ctx.PageContent(dict, page)
}

// TextBoxes returns where the page's own content shows text, in native space.
// Widths are estimated at half an em per byte.
func (d *Document) TextBoxes(page int) ([]Box, error) {
	if boxes, ok := d.textBoxes[page]; ok {
		return boxes, nil
	}
	content, err := d.Content(page)
	if err != nil {
		return nil, err
	}
	ops, err := contentstream.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("page %d content: %w", page, err)
	}
	traced, err := contentstream.NewTracer().Trace(ops)
	if err != nil {
		return nil, err
	}
	var boxes []Box
	for _, b := range traced {
		if contentstream.ShowsText(ops[b.OpIndex].Operator) {
			boxes = append(boxes, Box{LLX: b.Rect.LLX, LLY: b.Rect.LLY, URX: b.Rect.URX, URY: b.Rect.URY})
		}
	}
	d.textBoxes[page] = boxes
	return boxes, nil
}

// pageState is the drawing state of one page. It hands out resource names to
// its builder.
type pageState struct {
	doc    *Document
	number int
	dict   types.Dict
	res    types.Dict
	box    Box
	pb     *builder.PageBuilder
	names  map[string]string
}

func (d *Document) page(n int) (*pageState, error) {
	if ps, ok := d.pages[n]; ok {
		return ps, nil
	}
	if n < 1 || n > d.ctx.PageCount {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.ctx.PageCount)
	}
	dict, _, inh, err := d.ctx.PageDict(n, false)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrInvalidDocument, n, err)
	}
	if dict == nil || inh == nil {
		return nil, fmt.Errorf("%w: page %d missing", ErrInvalidDocument, n)
	}
	rect := inh.CropBox
	if rect == nil {
		rect = inh.MediaBox
	}
	if rect == nil {
		rect = types.RectForFormat("Letter")
	}
	ps := &pageState{
		doc:    d,
		number: n,
		dict:   dict,
		box:    Box{LLX: rect.LL.X, LLY: rect.LL.Y, URX: rect.UR.X, URY: rect.UR.Y},
		names:  map[string]string{},
	}
	ps.pb = builder.NewPageBuilder(ps)
	d.pages[n] = ps
	return ps, nil
}

// resources returns the page's resource dictionary. Inherited resources are
// attached to the page itself on first use.
func (ps *pageState) resources() types.Dict {
	if ps.res != nil {
		return ps.res
	}
	_, _, inh, err := ps.doc.ctx.PageDict(ps.number, false)
	if err == nil && inh != nil && inh.Resources != nil {
		ps.res = inh.Resources
		ps.dict.Update("Resources", ps.res)
	} else {
		ps.res = types.NewDict()
		ps.dict.Insert("Resources", ps.res)
	}
	return ps.res
}

// register adds ref to the kind subdictionary of the page resources under a
// fresh name with prefix.
func (ps *pageState) register(kind, prefix string, ref types.IndirectRef) (string, error) {
	res := ps.resources()
	var sub types.Dict
	if o, ok := res.Find(kind); ok {
		var err error
		if sub, err = ps.doc.ctx.DereferenceDict(o); err != nil {
			return "", fmt.Errorf("page %d %s resources: %w", ps.number, kind, err)
		}
	}
	if sub == nil {
		sub = types.NewDict()
		res.Update(kind, sub)
	}
	name := sub.NewIDForPrefix(prefix, 0)
	sub.Insert(name, ref)
	return name, nil
}

func (ps *pageState) cached(key, kind, prefix string, ref func() (types.IndirectRef, error)) (string, error) {
	if name, ok := ps.names[key]; ok {
		return name, nil
	}
	r, err := ref()
	if err != nil {
		return "", err
	}
	name, err := ps.register(kind, prefix, r)
	if err != nil {
		return "", err
	}
	ps.names[key] = name
	return name, nil
}

func (ps *pageState) Font(baseFont string) (string, error) {
	return ps.cached("font:"+baseFont, "Font", "OvF", func() (types.IndirectRef, error) {
		d := ps.doc
		if ref, ok := d.fonts[baseFont]; ok {
			return ref, nil
		}
		ir, err := pdffont.EnsureFontDict(d.ctx.XRefTable, baseFont, "", "", false, nil)
		if err != nil {
			return types.IndirectRef{}, fmt.Errorf("%w: %s: %v", ErrUnsupportedFont, baseFont, err)
		}
		d.fonts[baseFont] = *ir
		return *ir, nil
	})
}

func (ps *pageState) Image(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return ps.cached(fmt.Sprintf("img:%x", sum), "XObject", "OvIm", func() (types.IndirectRef, error) {
		d := ps.doc
		if ref, ok := d.images[sum]; ok {
			return ref, nil
		}
		enc, _, err := builder.ImageData(data)
		if err != nil {
			return types.IndirectRef{}, err
		}
		ir, _, _, err := model.CreateImageResource(d.ctx.XRefTable, bytes.NewReader(enc))
		if err != nil {
			return types.IndirectRef{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		d.images[sum] = *ir
		return *ir, nil
	})
}

func (ps *pageState) Opacity(alpha float64) (string, error) {
	key := strconv.FormatFloat(alpha, 'f', 3, 64)
	return ps.cached("gs:"+key, "ExtGState", "OvGS", func() (types.IndirectRef, error) {
		d := ps.doc
		if ref, ok := d.alphas[key]; ok {
			return ref, nil
		}
		gs := types.Dict{
			"Type": types.Name("ExtGState"),
			"CA":   types.Float(alpha),
			"ca":   types.Float(alpha),
		}
		ir, err := d.ctx.IndRefForNewObject(gs)
		if err != nil {
			return types.IndirectRef{}, err
		}
		d.alphas[key] = *ir
		return *ir, nil
	})
}

// Drawing coordinates are native PDF space of the page.

func (d *Document) DrawText(page int, text string, x, y float64, opts builder.TextOptions) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawText(text, x, y, opts)
}

func (d *Document) DrawRectangle(page int, x, y, width, height float64, opts builder.RectOptions) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawRectangle(x, y, width, height, opts)
}

func (d *Document) DrawEllipse(page int, x, y, width, height float64, opts builder.RectOptions) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawEllipse(x, y, width, height, opts)
}

func (d *Document) DrawLine(page int, x1, y1, x2, y2 float64, opts builder.LineOptions) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawLine(x1, y1, x2, y2, opts)
}

func (d *Document) DrawPolyline(page int, points []geo.Point, opts builder.PathOptions) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawPolyline(points, opts)
}

func (d *Document) DrawImage(page int, data []byte, x, y, width, height, opacity float64) error {
	ps, err := d.page(page)
	if err != nil {
		return err
	}
	return ps.pb.DrawImage(data, x, y, width, height, opacity)
}

// Save writes the document with everything drawn so far on top of the
// original page content. The document stays usable; drawn content is not
// written twice.
func (d *Document) Save() ([]byte, error) {
	nums := make([]int, 0, len(d.pages))
	for n, ps := range d.pages {
		if !ps.pb.Empty() {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)
	for _, n := range nums {
		ps := d.pages[n]
		if err := d.appendContent(ps); err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		ps.pb = builder.NewPageBuilder(ps)
	}
	var buf bytes.Buffer
	if err := api.WriteContext(d.ctx, &buf); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	d.logger.Debug("document written", observability.Int("bytes", buf.Len()), observability.Int("pages_drawn", len(nums)))
	return buf.Bytes(), nil
}

// appendContent brackets the existing content in q/Q so its graphics state
// cannot leak into the overlay, then appends the overlay stream.
func (d *Document) appendContent(ps *pageState) error {
	var existing types.Array
	if obj, ok := ps.dict.Find("Contents"); ok && obj != nil {
		o, err := d.ctx.Dereference(obj)
		if err != nil {
			return err
		}
		switch v := o.(type) {
		case types.Array:
			existing = v
		case types.StreamDict:
			if ir, ok := obj.(types.IndirectRef); ok {
				existing = types.Array{ir}
			} else {
				ref, err := d.ctx.IndRefForNewObject(v)
				if err != nil {
					return err
				}
				existing = types.Array{*ref}
			}
		}
	}
	overlay := ps.pb.Bytes()
	contents := types.Array{}
	if len(existing) > 0 {
		pre, err := d.stream([]byte("q\n"))
		if err != nil {
			return err
		}
		contents = append(contents, pre)
		contents = append(contents, existing...)
		overlay = append([]byte("\nQ\n"), overlay...)
	}
	post, err := d.stream(overlay)
	if err != nil {
		return err
	}
	contents = append(contents, post)
	ps.dict.Update("Contents", contents)
	return nil
}

func (d *Document) stream(data []byte) (types.IndirectRef, error) {
	sd, err := d.ctx.NewStreamDictForBuf(data)
	if err != nil {
		return types.IndirectRef{}, err
	}
	if err := sd.Encode(); err != nil {
		return types.IndirectRef{}, err
	}
	ir, err := d.ctx.IndRefForNewObject(*sd)
	if err != nil {
		return types.IndirectRef{}, err
	}
	return *ir, nil
}
