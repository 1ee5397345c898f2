package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"

	"github.com/beevik/etree"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"epg/book"
	"epg/config"
	"epg/i18n"
)

// writeCover writes the cover page and the cover image. The image is decoded
// and re-encoded as PNG, resized according to configuration.
func writeCover(zw *zip.Writer, bk *book.Book, cfg *config.DocumentConfig, labels *i18n.Localizer, log *zap.Logger) error {
	img, err := imaging.Open(bk.CoverPath)
	if err != nil {
		return fmt.Errorf("unable to open cover image: %w", err)
	}

	cover := cfg.Images.Cover
	switch cover.Resize {
	case config.ImageResizeModeKeepAR:
		img = imaging.Fit(img, cover.Width, cover.Height, imaging.Lanczos)
	case config.ImageResizeModeStretch:
		img = imaging.Resize(img, cover.Width, cover.Height, imaging.Lanczos)
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	style := head.CreateElement("style")
	style.CreateAttr("type", "text/css")
	switch cover.Resize {
	case config.ImageResizeModeStretch:
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: 100%; height: 100%; }")
	default:
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: auto; height: 100%; margin: 0 auto }")
	}

	title := head.CreateElement("title")
	title.SetText(bk.AsTitleText(labels.Get("cover")))

	body := html.CreateElement("body")

	svg := body.CreateElement("svg")
	svg.CreateAttr("version", "1.1")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")

	svgImage := svg.CreateElement("image")
	svgImage.CreateAttr("x", "0")
	svgImage.CreateAttr("y", "0")
	switch cover.Resize {
	case config.ImageResizeModeStretch:
		svg.CreateAttr("viewBox", "0 0 100 100")
		svg.CreateAttr("preserveAspectRatio", "xMidYMid slice")
		svgImage.CreateAttr("width", "100")
		svgImage.CreateAttr("height", "100")
	default:
		svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, h))
		svg.CreateAttr("preserveAspectRatio", "xMidYMid meet")
		svgImage.CreateAttr("width", fmt.Sprintf("%d", w))
		svgImage.CreateAttr("height", fmt.Sprintf("%d", h))
	}
	svgImage.CreateAttr("xlink:href", "../"+assetsDir+"/"+coverImage)

	if err := writeXMLToZip(zw, path.Join(oebpsDir, textDir, coverFileName), doc); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("unable to encode cover image: %w", err)
	}
	log.Debug("Cover image prepared", zap.Int("width", w), zap.Int("height", h))
	return writeDataToZip(zw, path.Join(oebpsDir, assetsDir, coverImage), buf.Bytes())
}
