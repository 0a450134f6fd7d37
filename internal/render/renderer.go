package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/gomoku-kakao-bot/internal/gomoku"
)

type Options struct {
	HUDHeader string
	HUDTurn   string
	// Last marks the most recent stone; nil uses the board's last move.
	Last *gomoku.Position
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, b *gomoku.Board, opts Options) ([]byte, error)
}

const (
	cellSize   = 36
	margin     = 40
	hudHeight  = 56
	stoneRatio = 0.44
)

var (
	boardColor  = color.RGBA{222, 184, 120, 255}
	hudPanel    = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudText     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudSubText  = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	labelColor  = color.NRGBA{R: 60, G: 40, B: 20, A: 255}
	lastMoveHex = "#e0393e"
)

type svgRenderer struct{}

func NewSVGBoardRenderer() BoardRenderer { return svgRenderer{} }

// ColumnLabel is the letter printed above column x.
func ColumnLabel(x int) string { return string(rune('A' + x)) }

// RowLabel is the number printed left of row y; row 1 is the bottom row.
func RowLabel(size, y int) string { return strconv.Itoa(size - y) }

func (svgRenderer) RenderPNG(ctx context.Context, b *gomoku.Board, opts Options) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("board is nil")
	}
	size := b.Size()
	span := cellSize * (size - 1)
	boardPx := span + margin*2
	width, height := boardPx, boardPx+hudHeight

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(boardColor), image.Point{}, imagedraw.Src)

	last := opts.Last
	if last == nil {
		if mv, ok := b.Last(); ok {
			p := mv.Pos
			last = &p
		}
	}
	doc := boardSVG(b, last, boardPx)
	if err := rasterize(img, doc, boardPx, hudHeight); err != nil {
		return nil, err
	}
	drawHUD(img, opts, width)
	drawLabels(img, size, hudHeight)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func point(i int) int { return margin + i*cellSize }

func starPoints(size int) []int {
	if size == gomoku.Size19 {
		return []int{3, 9, 15}
	}
	return []int{3, 7, 11}
}

// boardSVG draws grid, star points and stones in board pixel space.
func boardSVG(b *gomoku.Board, last *gomoku.Position, px int) string {
	size := b.Size()
	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, px, px, px, px)
	lo, hi := point(0), point(size-1)
	for i := 0; i < size; i++ {
		p := point(i)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#3c2814" stroke-width="1.5"/>`, lo, p, hi, p)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#3c2814" stroke-width="1.5"/>`, p, lo, p, hi)
	}
	for _, x := range starPoints(size) {
		for _, y := range starPoints(size) {
			fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="4" fill="#3c2814"/>`, point(x), point(y))
		}
	}
	r := float64(cellSize) * stoneRatio
	for _, mv := range b.Moves() {
		fill, stroke := "#141414", "#000000"
		if mv.Color == gomoku.White {
			fill, stroke = "#f5f5f0", "#505050"
		}
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%.1f" fill="%s" stroke="%s" stroke-width="1.5"/>`,
			point(mv.Pos.X), point(mv.Pos.Y), r, fill, stroke)
	}
	if last != nil && last.InBounds(size) {
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%.1f" fill="%s"/>`, point(last.X), point(last.Y), r/3, lastMoveHex)
	}
	sb.WriteString(`</svg>`)
	return sb.String()
}

func rasterize(dst *image.RGBA, doc string, px, offsetY int) error {
	icon, err := oksvg.ReadIconStream(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parse board svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(px), float64(px))

	layer := image.NewRGBA(image.Rect(0, 0, px, px))
	scanner := rasterx.NewScannerGV(px, px, layer, layer.Bounds())
	raster := rasterx.NewDasher(px, px, scanner)
	icon.Draw(raster, 1.0)

	imagedraw.Draw(dst, image.Rect(0, offsetY, px, offsetY+px), layer, image.Point{}, imagedraw.Over)
	return nil
}

func drawText(img *image.RGBA, clr color.Color, x, y int, s string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Round()
}

func drawHUD(img *image.RGBA, opts Options, width int) {
	imagedraw.Draw(img, image.Rect(0, 0, width, hudHeight), image.NewUniform(hudPanel), image.Point{}, imagedraw.Src)
	title := strings.TrimSpace(opts.HUDHeader)
	if title == "" {
		title = "Gomoku"
	}
	turn := strings.TrimSpace(opts.HUDTurn)
	drawText(img, hudText, (width-textWidth(title))/2, 22, title)
	if turn != "" {
		drawText(img, hudSubText, (width-textWidth(turn))/2, 42, turn)
	}
}

func drawLabels(img *image.RGBA, size, offsetY int) {
	for i := 0; i < size; i++ {
		col := ColumnLabel(i)
		drawText(img, labelColor, point(i)-textWidth(col)/2, offsetY+margin/2+4, col)
		row := RowLabel(size, i)
		drawText(img, labelColor, margin/2-textWidth(row)/2, offsetY+point(i)+5, row)
	}
}
