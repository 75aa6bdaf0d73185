package document

import (
	"strings"
)

// tableToMarkdown 将表格数据序列化为Markdown管道表格
// 第一行作为表头，行列结构在分块和检索时得以保留
// 少于两行的表格没有意义，返回空串
func tableToMarkdown(rows [][]string) string {
	if len(rows) < 2 {
		return ""
	}

	headers := rows[0]
	var b strings.Builder

	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := 0; i < len(headers); i++ {
			cell := ""
			if i < len(cells) {
				cell = strings.TrimSpace(cells[i])
			}
			b.WriteString(" " + cell + " |")
		}
		b.WriteString("\n")
	}

	writeRow(headers)

	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(row)
	}

	return strings.TrimRight(b.String(), "\n")
}

// detectTextTables 从提取的页面文本中识别表格区域
// 连续两行以上、且包含多个制表符或多空格分隔单元格的行视为表格，
// 识别出的区域被重写为Markdown表格并返回重写后的文本和表格数量
func detectTextTables(text string) (string, int) {
	lines := strings.Split(text, "\n")

	var out []string
	var tableRows [][]string
	tableCount := 0

	flush := func() {
		if len(tableRows) >= 2 {
			if md := tableToMarkdown(tableRows); md != "" {
				tableCount++
				out = append(out, md)
				tableRows = nil
				return
			}
		}
		// 不足以构成表格的行按原样保留
		for _, row := range tableRows {
			out = append(out, strings.Join(row, " "))
		}
		tableRows = nil
	}

	for _, line := range lines {
		cells := splitTableRow(line)
		if len(cells) >= 2 {
			tableRows = append(tableRows, cells)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()

	return strings.Join(out, "\n"), tableCount
}

// splitTableRow 尝试将一行文本拆分为表格单元格
// 以制表符或连续两个以上空格作为单元格分隔
func splitTableRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}

	var cells []string
	if strings.Contains(trimmed, "\t") {
		for _, c := range strings.Split(trimmed, "\t") {
			c = strings.TrimSpace(c)
			if c != "" {
				cells = append(cells, c)
			}
		}
		return cells
	}

	for _, c := range splitOnRuns(trimmed) {
		if c != "" {
			cells = append(cells, c)
		}
	}
	return cells
}

// splitOnRuns 按连续两个以上空格拆分
func splitOnRuns(s string) []string {
	var cells []string
	var cur strings.Builder
	spaces := 0

	for _, r := range s {
		if r == ' ' {
			spaces++
			continue
		}
		if spaces >= 2 && cur.Len() > 0 {
			cells = append(cells, cur.String())
			cur.Reset()
		} else if spaces > 0 && cur.Len() > 0 {
			cur.WriteRune(' ')
		}
		spaces = 0
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		cells = append(cells, cur.String())
	}

	return cells
}
