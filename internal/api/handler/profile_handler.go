package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"cvision/internal/export"
	"cvision/internal/processor"
	"cvision/internal/storage"
	"cvision/internal/types"
)

const (
	defaultExportLimit = 10000
	// DuplicateHeader 文本此前已处理过时响应中带上该头
	DuplicateHeader = "X-Cvision-Duplicate"
)

// ProfileHandler 档案抽取、关系推断、查询与导出
type ProfileHandler struct {
	service *processor.ProfileService
}

func NewProfileHandler(service *processor.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// SubmitResponse 异步提交的响应
type SubmitResponse struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

func errorJSON(ctx *app.RequestContext, code int, msg string) {
	_ = ctx.Error(errors.New(msg)) // 供访问日志中间件记录到 span
	ctx.AbortWithStatusJSON(code, utils.H{"error": msg})
}

// ExtractProfile POST /profiles/extract
//   - application/json: {"filename": "...", "raw_text": "..."}
//   - multipart/form-data: file 字段，按扩展名解码
//   - ?async=true 时只入队，返回 202
func (h *ProfileHandler) ExtractProfile(c context.Context, ctx *app.RequestContext) {
	doc, err := h.readDocument(c, ctx)
	if err != nil {
		errorJSON(ctx, consts.StatusBadRequest, err.Error())
		return
	}

	if async, _ := strconv.ParseBool(ctx.Query("async")); async {
		if err := h.service.Submit(c, doc.Text, "api"); err != nil {
			if errors.Is(err, processor.ErrStorageUnavailable) {
				errorJSON(ctx, consts.StatusServiceUnavailable, "消息队列未启用")
				return
			}
			hlog.CtxErrorf(c, "提交文本失败: %v", err)
			errorJSON(ctx, consts.StatusInternalServerError, err.Error())
			return
		}
		ctx.JSON(consts.StatusAccepted, SubmitResponse{Filename: doc.Text.Filename, Status: "queued"})
		return
	}

	result, err := h.service.Extract(c, doc)
	switch {
	case err == nil:
	case errors.Is(err, processor.ErrDuplicateText):
		ctx.Header(DuplicateHeader, "true")
	case errors.Is(err, processor.ErrEmptyDocument):
		errorJSON(ctx, consts.StatusUnprocessableEntity, err.Error())
		return
	default:
		hlog.CtxErrorf(c, "抽取档案失败: %v", err)
		errorJSON(ctx, consts.StatusInternalServerError, err.Error())
		return
	}
	ctx.JSON(consts.StatusOK, result)
}

func (h *ProfileHandler) readDocument(c context.Context, ctx *app.RequestContext) (*processor.Document, error) {
	if bytes.HasPrefix(ctx.ContentType(), []byte(consts.MIMEMultipartPOSTForm)) {
		fileHeader, err := ctx.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("文件未找到")
		}
		file, err := fileHeader.Open()
		if err != nil {
			return nil, fmt.Errorf("打开文件失败")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("读取上传文件失败: %w", err)
		}
		return h.service.DecodeUpload(c, fileHeader.Filename, data)
	}

	var text types.ResumeText
	if err := json.Unmarshal(ctx.Request.Body(), &text); err != nil {
		return nil, fmt.Errorf("请求体不是有效的JSON: %w", err)
	}
	if strings.TrimSpace(text.Filename) == "" {
		return nil, fmt.Errorf("filename 不能为空")
	}
	return &processor.Document{Text: text}, nil
}

// InferRelationships POST /relationships/infer，请求体为 ExtractedProfile
func (h *ProfileHandler) InferRelationships(c context.Context, ctx *app.RequestContext) {
	var profile types.ExtractedProfile
	if err := json.Unmarshal(ctx.Request.Body(), &profile); err != nil {
		errorJSON(ctx, consts.StatusBadRequest, "请求体不是有效的档案JSON")
		return
	}
	ctx.JSON(consts.StatusOK, h.service.Pipeline().Infer(&profile))
}

// GetProfile GET /profiles/:filename
func (h *ProfileHandler) GetProfile(c context.Context, ctx *app.RequestContext) {
	filename := ctx.Param("filename")
	result, err := h.service.Lookup(c, filename)
	switch {
	case err == nil:
		ctx.JSON(consts.StatusOK, result)
	case errors.Is(err, processor.ErrStorageUnavailable):
		errorJSON(ctx, consts.StatusServiceUnavailable, "存储未启用")
	case errors.Is(err, storage.ErrProfileNotFound):
		errorJSON(ctx, consts.StatusNotFound, "档案不存在: "+filename)
	default:
		hlog.CtxErrorf(c, "查询档案 %s 失败: %v", filename, err)
		errorJSON(ctx, consts.StatusInternalServerError, err.Error())
	}
}

// Export GET /export.csv，?format=xlsx 时返回 Excel
func (h *ProfileHandler) Export(c context.Context, ctx *app.RequestContext) {
	limit := defaultExportLimit
	if v := ctx.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errorJSON(ctx, consts.StatusBadRequest, "limit 必须为正整数")
			return
		}
		limit = n
	}

	results, err := h.service.ListProfiles(c, limit)
	if err != nil {
		if errors.Is(err, processor.ErrStorageUnavailable) {
			errorJSON(ctx, consts.StatusServiceUnavailable, "数据库未启用")
			return
		}
		hlog.CtxErrorf(c, "读取档案列表失败: %v", err)
		errorJSON(ctx, consts.StatusInternalServerError, err.Error())
		return
	}

	rows := export.Rows(results)
	var buf bytes.Buffer
	if ctx.Query("format") == "xlsx" {
		if err := export.WriteXLSX(&buf, rows); err != nil {
			errorJSON(ctx, consts.StatusInternalServerError, err.Error())
			return
		}
		ctx.Header("Content-Disposition", `attachment; filename="cvision_integrated.xlsx"`)
		ctx.Data(consts.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
		return
	}
	if err := export.WriteCSV(&buf, rows); err != nil {
		errorJSON(ctx, consts.StatusInternalServerError, err.Error())
		return
	}
	ctx.Header("Content-Disposition", `attachment; filename="cvision_integrated.csv"`)
	ctx.Data(consts.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// Health GET /health
func (h *ProfileHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok", "persistent": h.service.Persistent()})
}
