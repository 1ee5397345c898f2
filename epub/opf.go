package epub

import (
	"archive/zip"
	"fmt"
	"path"

	"github.com/beevik/etree"

	"epg/book"
	"epg/i18n"
)

// packageInfo gathers everything the package documents need that is not part
// of the book model itself.
type packageInfo struct {
	identifier string
	modified   string
	hasCover   bool
	hasHead    bool
	mathml     map[string]bool // chapter file name -> needs mathml property
}

func writeOPF(zw *zip.Writer, bk *book.Book, refs []*NavRef, assets []AssetRef, info *packageInfo, labels *i18n.Localizer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("unique-identifier", "BookId")
	pkg.CreateAttr("version", "3.0")

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	dcTitle := metadata.CreateElement("dc:title")
	dcTitle.SetText(bk.AsTitleText(labels.Get("untitled")))

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", "BookId")
	dcIdentifier.SetText(info.identifier)

	dcLang := metadata.CreateElement("dc:language")
	dcLang.SetText(labels.Tag().String())

	if bk.Meta != nil {
		for idx, author := range bk.Meta.Authors {
			addContributor(metadata, "dc:creator", author, fmt.Sprintf("creator%d", idx), "aut")
		}
		for idx, editor := range bk.Meta.Editors {
			addContributor(metadata, "dc:contributor", editor, fmt.Sprintf("editor%d", idx), "edt")
		}
		for idx, translator := range bk.Meta.Translators {
			addContributor(metadata, "dc:contributor", translator, fmt.Sprintf("translator%d", idx), "trl")
		}
		if bk.Meta.Publisher != "" {
			dcPublisher := metadata.CreateElement("dc:publisher")
			dcPublisher.SetText(bk.Meta.Publisher)
		}
		if bk.Meta.Description != "" {
			dcDescription := metadata.CreateElement("dc:description")
			dcDescription.SetText(bk.Meta.Description)
		}
	}

	modifiedMeta := metadata.CreateElement("meta")
	modifiedMeta.CreateAttr("property", "dcterms:modified")
	modifiedMeta.SetText(info.modified)

	manifest := pkg.CreateElement("manifest")

	navItem := manifest.CreateElement("item")
	navItem.CreateAttr("id", "nav")
	navItem.CreateAttr("href", "nav.xhtml")
	navItem.CreateAttr("media-type", "application/xhtml+xml")
	navItem.CreateAttr("properties", "nav")

	ncxItem := manifest.CreateElement("item")
	ncxItem.CreateAttr("id", "ncx")
	ncxItem.CreateAttr("href", "toc.ncx")
	ncxItem.CreateAttr("media-type", "application/x-dtbncx+xml")

	cssItem := manifest.CreateElement("item")
	cssItem.CreateAttr("id", "stylesheet")
	cssItem.CreateAttr("href", stylesDir+"/style.css")
	cssItem.CreateAttr("media-type", "text/css")

	if info.hasCover {
		coverPageItem := manifest.CreateElement("item")
		coverPageItem.CreateAttr("id", "cover-page")
		coverPageItem.CreateAttr("href", textDir+"/"+coverFileName)
		coverPageItem.CreateAttr("media-type", "application/xhtml+xml")
		coverPageItem.CreateAttr("properties", "svg")

		coverImageItem := manifest.CreateElement("item")
		coverImageItem.CreateAttr("id", "cover-image")
		coverImageItem.CreateAttr("href", assetsDir+"/"+coverImage)
		coverImageItem.CreateAttr("media-type", "image/png")
		coverImageItem.CreateAttr("properties", "cover-image")
	}

	if info.hasHead {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "head")
		item.CreateAttr("href", textDir+"/"+headFileName)
		item.CreateAttr("media-type", "application/xhtml+xml")
		if info.mathml[headFileName] {
			item.CreateAttr("properties", "mathml")
		}
	}

	for _, ref := range refs {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", fmt.Sprintf("part-%d", ref.ID))
		item.CreateAttr("href", textDir+"/"+ref.FileName)
		item.CreateAttr("media-type", "application/xhtml+xml")
		if info.mathml[ref.FileName] {
			item.CreateAttr("properties", "mathml")
		}
	}

	for _, asset := range assets {
		item := manifest.CreateElement("item")
		item.CreateAttr("id", "asset-"+asset.FileName)
		item.CreateAttr("href", assetsDir+"/"+asset.FileName)
		item.CreateAttr("media-type", asset.MediaType)
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")

	if info.hasCover {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", "cover-page")
	}
	if info.hasHead {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", "head")
	}
	for _, ref := range refs {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", fmt.Sprintf("part-%d", ref.ID))
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "content.opf"), doc)
}

func addContributor(metadata *etree.Element, tag, name, id, role string) {
	el := metadata.CreateElement(tag)
	el.CreateAttr("id", id)
	el.SetText(name)

	roleMeta := metadata.CreateElement("meta")
	roleMeta.CreateAttr("refines", "#"+id)
	roleMeta.CreateAttr("property", "role")
	roleMeta.CreateAttr("scheme", "marc:relators")
	roleMeta.SetText(role)
}

func writeNav(zw *zip.Writer, bk *book.Book, points []*NavPoint, info *packageInfo, labels *i18n.Localizer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")

	head := html.CreateElement("head")

	meta := head.CreateElement("meta")
	meta.CreateAttr("charset", "utf-8")

	title := head.CreateElement("title")
	title.SetText(labels.Get("toc"))

	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", stylesDir+"/style.css")

	body := html.CreateElement("body")

	nav := body.CreateElement("nav")
	nav.CreateAttr("epub:type", "toc")
	nav.CreateAttr("id", "toc")
	nav.CreateAttr("role", "doc-toc")

	h1 := nav.CreateElement("h1")
	h1.CreateAttr("class", "toc-title")
	h1.SetText(bk.AsTitleText(labels.Get("toc")))

	ol := nav.CreateElement("ol")
	ol.CreateAttr("class", "toc-list")
	for _, np := range points {
		buildNavItem(ol, np)
	}

	landmarks := body.CreateElement("nav")
	landmarks.CreateAttr("epub:type", "landmarks")
	landmarks.CreateAttr("id", "landmarks")
	landmarks.CreateAttr("hidden", "")

	h2 := landmarks.CreateElement("h2")
	h2.SetText(labels.Get("landmarks"))

	landmarksOL := landmarks.CreateElement("ol")

	if info.hasCover {
		li := landmarksOL.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "cover")
		a.CreateAttr("href", textDir+"/"+coverFileName)
		a.SetText(labels.Get("cover"))
	}
	if info.hasHead {
		li := landmarksOL.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "frontmatter")
		a.CreateAttr("href", textDir+"/"+headFileName)
		a.SetText(labels.Get("preface"))
	}
	if len(points) > 0 {
		li := landmarksOL.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "bodymatter")
		a.CreateAttr("href", textDir+"/"+points[0].Resolve().FileName)
		a.SetText(labels.Get("begin_reading"))
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "nav.xhtml"), doc)
}

func buildNavItem(parentOL *etree.Element, np *NavPoint) {
	li := parentOL.CreateElement("li")
	a := li.CreateElement("a")
	a.CreateAttr("href", textDir+"/"+np.Resolve().FileName)
	a.SetText(np.Title)

	if len(np.Children) > 0 {
		ol := li.CreateElement("ol")
		for _, child := range np.Children {
			buildNavItem(ol, child)
		}
	}
}

func writeNCX(zw *zip.Writer, bk *book.Book, points []*NavPoint, info *packageInfo, labels *i18n.Localizer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")

	metaUID := head.CreateElement("meta")
	metaUID.CreateAttr("name", "dtb:uid")
	metaUID.CreateAttr("content", info.identifier)

	metaDepth := head.CreateElement("meta")
	metaDepth.CreateAttr("name", "dtb:depth")
	metaDepth.CreateAttr("content", fmt.Sprintf("%d", maxDepth(points)))

	docTitle := ncx.CreateElement("docTitle")
	text := docTitle.CreateElement("text")
	text.SetText(bk.AsTitleText(labels.Get("untitled")))

	navMap := ncx.CreateElement("navMap")
	counter := 0
	for _, np := range points {
		buildNCXNavPoint(navMap, np, &counter)
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "toc.ncx"), doc)
}

// buildNCXNavPoint renders one navigation node. Placeholder nodes borrow the
// order and file of their first resolved descendant; element ids stay unique
// via a running counter.
func buildNCXNavPoint(parent *etree.Element, np *NavPoint, counter *int) {
	ref := np.Resolve()
	*counter++

	navPoint := parent.CreateElement("navPoint")
	navPoint.CreateAttr("id", fmt.Sprintf("navpoint-%d", *counter))
	navPoint.CreateAttr("playOrder", fmt.Sprintf("%d", ref.Order))

	navLabel := navPoint.CreateElement("navLabel")
	labelText := navLabel.CreateElement("text")
	labelText.SetText(np.Title)

	content := navPoint.CreateElement("content")
	content.CreateAttr("src", textDir+"/"+ref.FileName)

	for _, child := range np.Children {
		buildNCXNavPoint(navPoint, child, counter)
	}
}
