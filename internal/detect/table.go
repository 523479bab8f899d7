package detect

type candidate struct {
	field    Field
	selector string
}

// candidates is ordered most specific first; within a field, table order is
// the tie-break.
var candidates = []candidate{
	{Title, "h1.entry-title"},
	{Title, ".komik_info-content-body h1"},
	{Title, ".series-title h1"},
	{Title, ".manga-title h1"},
	{Title, ".title-wrapper h1"},
	{Title, ".post-title h1"},
	{Title, ".series-name h1"},
	{Title, ".seriestuheader h1"},
	{Title, ".series-title"},
	{Title, `h1[itemprop="name"]`},
	{Title, "h1.title"},
	{Title, ".comic-title h1"},
	{Title, "h1"},

	{Cover, ".thumb img"},
	{Cover, ".komik_info-content-thumbnail img"},
	{Cover, ".series-thumb img"},
	{Cover, ".manga-image img"},
	{Cover, ".cover img"},
	{Cover, ".summary_image img"},
	{Cover, ".post-thumb img"},
	{Cover, ".seriestucon img"},
	{Cover, ".seriestucontent img"},
	{Cover, `img[itemprop="image"]`},
	{Cover, "img.wp-post-image"},
	{Cover, ".featured-image img"},
	{Cover, "img[data-src]"},
	{Cover, "img[data-lazy-src]"},

	{Description, `.entry-content[itemprop="description"]`},
	{Description, ".komik_info-description-sinopsis"},
	{Description, ".series-synops"},
	{Description, ".description"},
	{Description, ".manga-excerpt"},
	{Description, ".summary__content"},
	{Description, ".manga-summary"},
	{Description, ".seriestucon .entry-content"},
	{Description, ".seriestuheader .entry-content"},
	{Description, `[itemprop="description"]`},
	{Description, ".synopsis"},
	{Description, ".summary"},
	{Description, ".description p"},
	{Description, "p"},

	{Genres, ".mgen a"},
	{Genres, ".komik_info-content-genre a"},
	{Genres, ".series-genres a"},
	{Genres, ".genres a"},
	{Genres, ".manga-genres a"},
	{Genres, ".genres-content a"},
	{Genres, ".wp-manga-tags a"},
	{Genres, ".seriestugenre a"},
	{Genres, ".genxed a"},
	{Genres, ".genre-info a"},
	{Genres, `[rel="tag"]`},
	{Genres, ".tags a"},
	{Genres, ".genre a"},

	{Status, ".series-status"},
	{Status, ".status"},
	{Status, ".komik_info-content-info-status"},
	{Status, ".post-status"},
	{Status, ".manga-status"},
	{Status, `.summary-heading:contains("Status") + .summary-content`},
	{Status, `.post-content_item:contains("Status")`},
	{Status, ".seriestuheader .status"},
	{Status, `.infotable tr:contains("Status") td`},
	{Status, `.imptdt:contains("Status")`},
	{Status, `.spe:contains("Status")`},
	{Status, "body"},

	{Rating, ".rating-prc"},
	{Rating, ".rating"},
	{Rating, ".komik_info-content-rating"},
	{Rating, ".post-total-rating"},
	{Rating, ".manga-rating"},
	{Rating, ".post-rating .num"},
	{Rating, `.summary-heading:contains("Rating") + .summary-content`},
	{Rating, ".seriestuheader .rating"},
	{Rating, ".data-rating"},
	{Rating, `[itemprop="ratingValue"]`},
	{Rating, ".score"},

	{Author, ".author"},
	{Author, ".komik_info-content-info-author"},
	{Author, `[itemprop="author"]`},
	{Author, `.summary-heading:contains("Author") + .summary-content`},
	{Author, `.infotable tr:contains("Author") td`},
	{Author, ".artist"},

	{Type, ".type"},
	{Type, ".komik_info-content-info-type"},
	{Type, `.summary-heading:contains("Type") + .summary-content`},
	{Type, `.infotable tr:contains("Type") td`},
	{Type, "body"},

	{ChapterList, "#chapterlist li a"},
	{ChapterList, ".eplister li a"},
	{ChapterList, ".komik_info-chapters-item a"},
	{ChapterList, ".chapter-list a"},
	{ChapterList, ".chapters-list-ul li a"},
	{ChapterList, ".version-chap li a"},
	{ChapterList, ".wp-manga-chapter a"},
	{ChapterList, ".eph-num a"},
	{ChapterList, ".chapter-link"},
	{ChapterList, ".lchx a"},
	{ChapterList, ".chapter-item a"},
	{ChapterList, "li.chapter a"},
	{ChapterList, `a:contains("Chapter")`},
	{ChapterList, `a:contains("Ch.")`},

	{ChapterImages, "#readerarea img"},
	{ChapterImages, ".reader-area img"},
	{ChapterImages, ".main-reading-area img"},
	{ChapterImages, ".reading-content img"},
	{ChapterImages, ".chapter-content img"},
	{ChapterImages, ".reading-detail img"},
	{ChapterImages, ".page-break img"},
	{ChapterImages, "#chapter img"},
	{ChapterImages, ".chapter-images img"},
	{ChapterImages, "img[data-src]"},
	{ChapterImages, "img[data-lazy-src]"},
	{ChapterImages, "img[data-original]"},
	{ChapterImages, ".entry-content img"},
	{ChapterImages, "img"},
}
