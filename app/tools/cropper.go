package tools

import (
	"image"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

// CropperWidget displays a frame and lets the user drag out a template region
type CropperWidget struct {
	widget.BaseWidget

	frame      image.Image
	startPos   fyne.Position
	currentPos fyne.Position
	isDragging bool

	raster    *canvas.Image
	selection *canvas.Rectangle

	// OnSelected receives the selection in frame pixels
	OnSelected func(rect image.Rectangle)
}

func NewCropperWidget(frame image.Image, onSelected func(image.Rectangle)) *CropperWidget {
	c := &CropperWidget{
		frame:      frame,
		OnSelected: onSelected,
	}
	c.ExtendBaseWidget(c)

	c.raster = canvas.NewImageFromImage(frame)
	c.raster.ScaleMode = canvas.ImageScalePixels // templates must keep exact pixels
	c.raster.FillMode = canvas.ImageFillContain

	c.selection = canvas.NewRectangle(color.RGBA{R: 255, A: 60})
	c.selection.StrokeColor = color.RGBA{R: 255, A: 255}
	c.selection.StrokeWidth = 2
	c.selection.Hide()

	return c
}

func (c *CropperWidget) CreateRenderer() fyne.WidgetRenderer {
	return &cropperRenderer{
		cropper: c,
		objects: []fyne.CanvasObject{c.raster, c.selection},
	}
}

// Dragged implements fyne.Draggable
func (c *CropperWidget) Dragged(e *fyne.DragEvent) {
	if !c.isDragging {
		c.isDragging = true
		c.startPos = e.Position.Subtract(e.Dragged)
		c.selection.Show()
	}
	c.currentPos = e.Position
	c.Refresh()
}

// DragEnd implements fyne.Draggable. The selection stays visible.
func (c *CropperWidget) DragEnd() {
	c.isDragging = false
	c.Refresh()

	if c.OnSelected == nil {
		return
	}
	r := selectionToFrame(c.Size(), c.frame.Bounds(), c.startPos, c.currentPos)
	if !r.Empty() {
		c.OnSelected(r)
	}
}

// Tapped resets the selection
func (c *CropperWidget) Tapped(e *fyne.PointEvent) {
	c.startPos = e.Position
	c.currentPos = e.Position
	c.selection.Hide()
	c.Refresh()
}

func (c *CropperWidget) Cursor() desktop.Cursor {
	return desktop.CrosshairCursor
}

// viewRect is where the frame is drawn inside the widget
type viewRect struct {
	X, Y, W, H float32
}

// fitContain mirrors canvas.ImageFillContain
func fitContain(view fyne.Size, frame image.Rectangle) viewRect {
	if view.Width == 0 || view.Height == 0 || frame.Empty() {
		return viewRect{}
	}
	aspect := float32(frame.Dx()) / float32(frame.Dy())
	if view.Width/view.Height > aspect {
		h := view.Height
		w := h * aspect
		return viewRect{X: (view.Width - w) / 2, W: w, H: h}
	}
	w := view.Width
	h := w / aspect
	return viewRect{Y: (view.Height - h) / 2, W: w, H: h}
}

// selectionToFrame maps a drag between two widget positions to frame pixels
func selectionToFrame(view fyne.Size, frame image.Rectangle, a, b fyne.Position) image.Rectangle {
	drawn := fitContain(view, frame)
	if drawn.W == 0 {
		return image.Rectangle{}
	}

	x0 := max(min(a.X, b.X), drawn.X)
	y0 := max(min(a.Y, b.Y), drawn.Y)
	x1 := min(max(a.X, b.X), drawn.X+drawn.W)
	y1 := min(max(a.Y, b.Y), drawn.Y+drawn.H)
	if x1 <= x0 || y1 <= y0 {
		return image.Rectangle{}
	}

	sx := float32(frame.Dx()) / drawn.W
	sy := float32(frame.Dy()) / drawn.H
	r := image.Rect(
		int((x0-drawn.X)*sx),
		int((y0-drawn.Y)*sy),
		int((x1-drawn.X)*sx),
		int((y1-drawn.Y)*sy),
	).Add(frame.Min)
	// float rounding may overshoot by a pixel
	return r.Intersect(frame)
}

type cropperRenderer struct {
	cropper *CropperWidget
	objects []fyne.CanvasObject
}

func (r *cropperRenderer) Layout(s fyne.Size) {
	r.objects[0].Resize(s)
	r.objects[0].Move(fyne.NewPos(0, 0))
	r.layoutSelection()
}

func (r *cropperRenderer) layoutSelection() {
	c := r.cropper
	minX, minY := min(c.startPos.X, c.currentPos.X), min(c.startPos.Y, c.currentPos.Y)
	maxX, maxY := max(c.startPos.X, c.currentPos.X), max(c.startPos.Y, c.currentPos.Y)
	r.objects[1].Move(fyne.NewPos(minX, minY))
	r.objects[1].Resize(fyne.NewSize(maxX-minX, maxY-minY))
}

func (r *cropperRenderer) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

func (r *cropperRenderer) Refresh() {
	r.layoutSelection()
	canvas.Refresh(r.cropper)
}

func (r *cropperRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

func (r *cropperRenderer) Destroy() {}
