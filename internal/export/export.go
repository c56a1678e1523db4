package export // 把档案结果展平为表格行，导出 CSV / XLSX

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cvision/internal/types"
)

const (
	listSeparator = ", "
	sheetName     = "CVision"
)

// Columns 表头，顺序即输出列顺序
var Columns = []string{
	"filename", "name", "emails", "phones", "degrees", "institutions", "skills", "job_titles",
	"locations", "certifications", "languages", "links", "experience_years", "summary", "relationships_count",
}

// Row 一个文档的展平结果
type Row struct {
	Filename           string
	Name               string
	Emails             string
	Phones             string
	Degrees            string
	Institutions       string
	Skills             string
	JobTitles          string
	Locations          string
	Certifications     string
	Languages          string
	Links              string
	ExperienceYears    *int
	Summary            string
	RelationshipsCount int
}

// FromResult 展平一个结果，集合字段以 ", " 连接
func FromResult(r *types.ProfileResult) Row {
	p := r.Profile
	if p == nil {
		p = types.NewExtractedProfile("")
	}
	row := Row{
		Filename:           p.Filename,
		Name:               p.Name,
		Emails:             strings.Join(p.Emails, listSeparator),
		Phones:             strings.Join(p.Phones, listSeparator),
		Degrees:            strings.Join(p.Degrees, listSeparator),
		Institutions:       strings.Join(p.EducationInstitutions, listSeparator),
		Skills:             strings.Join(p.Skills, listSeparator),
		JobTitles:          strings.Join(p.JobTitles, listSeparator),
		Locations:          strings.Join(p.Locations, listSeparator),
		Certifications:     strings.Join(p.Certifications, listSeparator),
		Languages:          strings.Join(p.LanguagesSpoken, listSeparator),
		Links:              strings.Join(p.Links, listSeparator),
		ExperienceYears:    p.ExperienceYears,
		RelationshipsCount: len(r.Relationships),
	}
	if p.Summary != nil {
		row.Summary = *p.Summary
	}
	return row
}

// Rows 展平并按文件名排序
func Rows(results []*types.ProfileResult) []Row {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		if r != nil {
			rows = append(rows, FromResult(r))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Filename < rows[j].Filename })
	return rows
}

// Values 以字符串形式返回各列，缺失的经验年限为空串
func (r Row) Values() []string {
	years := ""
	if r.ExperienceYears != nil {
		years = strconv.Itoa(*r.ExperienceYears)
	}
	return []string{
		r.Filename, r.Name, r.Emails, r.Phones, r.Degrees, r.Institutions, r.Skills, r.JobTitles,
		r.Locations, r.Certifications, r.Languages, r.Links, years, r.Summary, strconv.Itoa(r.RelationshipsCount),
	}
}

// cells 与 Values 相同，但数值列保持数值类型
func (r Row) cells() []interface{} {
	values := r.Values()
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	if r.ExperienceYears != nil {
		out[12] = *r.ExperienceYears
	}
	out[14] = r.RelationshipsCount
	return out
}

// WriteCSV 写出表头和所有行
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("写入CSV表头失败: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(r.Values()); err != nil {
			return fmt.Errorf("写入CSV行 %s 失败: %w", r.Filename, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX 写出单工作表的 Excel 文件
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("设置工作表名称失败: %w", err)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("写入表头失败: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := r.cells()
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("写入行 %s 失败: %w", r.Filename, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("写出Excel失败: %w", err)
	}
	return nil
}

// WriteFile 按扩展名选择格式：.xlsx 为 Excel，其余为 CSV
func WriteFile(path string, rows []Row) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建导出目录失败: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建导出文件失败: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		err = WriteXLSX(f, rows)
	} else {
		err = WriteCSV(f, rows)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
