// Package pdfutil 提供 PDF 文本提取工具。
package pdfutil

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page 是从 PDF 提取的单页文本。
type Page struct {
	Number int
	Text   string
}

// ExtractPages 从内存中的 PDF 数据按页提取纯文本。
// 无法解析的页面会被跳过，空白页不计入结果。
func ExtractPages(data []byte) ([]Page, int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("parse pdf: %w", err)
	}

	pageCount := reader.NumPage()
	pages := make([]Page, 0, pageCount)

	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// 跳过无法解析的页面
			continue
		}

		text = NormalizeText(text)
		if text == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, pageCount, fmt.Errorf("no extractable text in pdf")
	}

	return pages, pageCount, nil
}

// JoinPages 将所有页面文本拼接为完整文档文本，页面间以空行分隔。
func JoinPages(pages []Page) string {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	paraSepRe = regexp.MustCompile(`\n\s*\n+`)
)

// NormalizeText 规范化提取出的文本：压缩连续空格，
// 统一段落分隔为空行并去除首尾空白。
func NormalizeText(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	text = paraSepRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
