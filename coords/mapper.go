package coords

// Rotation is a clockwise page display rotation in degrees.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Normalize folds r onto 0, 90, 180 or 270. Values that are not a multiple of
// 90 are rounded down to the previous quarter turn.
func (r Rotation) Normalize() Rotation {
	v := int(r) % 360
	if v < 0 {
		v += 360
	}
	return Rotation(v - v%90)
}

// Next returns r turned a further quarter clockwise.
func (r Rotation) Next() Rotation { return (r + 90).Normalize() }

// Size is a page size in page units (PDF points).
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ViewState describes how a page is presented on the device.
type ViewState struct {
	Zoom     float64
	Rotation Rotation
	PageSize Size
}

func (v ViewState) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

// DeviceSize reports the rendered canvas extents in device pixels.
func DeviceSize(v ViewState) Size {
	z := v.zoom()
	w, h := v.PageSize.Width*z, v.PageSize.Height*z
	switch v.Rotation.Normalize() {
	case Rotate90, Rotate270:
		return Size{Width: h, Height: w}
	}
	return Size{Width: w, Height: h}
}

// rotation returns the quarter turn about the origin of the zoomed page,
// translated so the rotated extents stay positive.
func rotation(v ViewState) Matrix {
	z := v.zoom()
	w, h := v.PageSize.Width*z, v.PageSize.Height*z
	switch v.Rotation.Normalize() {
	case Rotate90:
		return RotateDegrees(90).Multiply(Translate(h, 0))
	case Rotate180:
		return RotateDegrees(180).Multiply(Translate(w, h))
	case Rotate270:
		return RotateDegrees(270).Multiply(Translate(0, w))
	}
	return Identity()
}

// PageToDevice returns the full page-to-device transform for v.
func PageToDevice(v ViewState) Matrix {
	z := v.zoom()
	return Scale(z, z).Multiply(rotation(v))
}

// ToDeviceSpace maps a page-space point to device pixels.
func ToDeviceSpace(p Point, v ViewState) Point {
	return PageToDevice(v).Transform(p)
}

// ToPageSpace maps a device point to page space. The inverse rotation is
// applied first, then the zoom is divided out.
func ToPageSpace(d Point, v ViewState) Point {
	inv, err := rotation(v).Inverse()
	if err != nil {
		inv = Identity()
	}
	q := inv.Transform(d)
	z := v.zoom()
	return Point{X: q.X / z, Y: q.Y / z}
}

// PageDelta maps a device-space displacement to page space.
func PageDelta(d Point, v ViewState) Point {
	inv, err := rotation(v).Inverse()
	if err != nil {
		inv = Identity()
	}
	q := inv.TransformVector(d)
	z := v.zoom()
	return Point{X: q.X / z, Y: q.Y / z}
}

// DeviceDelta maps a page-space displacement to device pixels.
func DeviceDelta(p Point, v ViewState) Point {
	return PageToDevice(v).TransformVector(p)
}

// PageLength converts a device length (for example a handle size in pixels)
// to page units. Rotation does not change lengths.
func PageLength(px float64, v ViewState) float64 {
	return px / v.zoom()
}

// DeviceLength is the inverse of PageLength.
func DeviceLength(pageLen float64, v ViewState) float64 {
	return pageLen * v.zoom()
}
