package handle

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/internal/types"
	"github.com/yeisme/sharevault/pkg/middleware"
)

// multipartOverhead 表单文本字段与边界占用的额外字节.
const multipartOverhead = 1 << 20

// UploadResource 上传文件并创建资源.
//
//	@Summary		上传资源
//	@Description	multipart 表单上传文件，tags 为逗号分隔
//	@Tags			资源
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			title		formData	string	true	"标题"
//	@Param			description	formData	string	false	"描述"
//	@Param			tags		formData	string	false	"逗号分隔的标签"
//	@Param			file		formData	file	true	"文件"
//	@Success		201			{object}	types.ResourceResponse
//	@Failure		400			{object}	types.ErrorResponse
//	@Failure		401			{object}	types.ErrorResponse
//	@Failure		500			{object}	types.ErrorResponse
//	@Router			/api/resources/upload [post]
func UploadResource(c *gin.Context) {
	cfg := configs.GetConfig().Blob

	limit := cfg.MaxUploadBytes
	if limit <= 0 {
		limit = configs.DefaultMaxUploadBytes
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	var req types.UploadResourceRequest
	if err := bind(c, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusBadRequest, errFileTooLarge.Error())
			return
		}

		badRequest(c, err)

		return
	}

	in := service.CreateInput{
		OwnerID:     middleware.CallerID(c),
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	}

	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// 交给 service 返回 "File is required"，与标题校验顺序保持一致
	case err != nil:
		badRequest(c, err)
		return
	default:
		if fh.Size > limit {
			fail(c, http.StatusBadRequest, errFileTooLarge.Error())
			return
		}

		contentType := detectContentType(fh.Header.Get("Content-Type"), fh.Filename)
		if len(cfg.AllowedMIMETypes) > 0 && !slices.Contains(cfg.AllowedMIMETypes, contentType) {
			fail(c, http.StatusBadRequest, "File type not allowed")
			return
		}

		f, err := fh.Open()
		if err != nil {
			badRequest(c, err)
			return
		}
		defer f.Close()

		in.File = &blob.PutInput{
			Body:         f,
			Size:         fh.Size,
			OriginalName: fh.Filename,
			ContentType:  contentType,
		}
	}

	ctx := c.Request.Context()

	res, err := service.NewResourceService(ctx).Create(ctx, in)
	if err != nil {
		respondError(c, err, "create resource")
		return
	}

	c.JSON(http.StatusCreated, types.ResourceResponse{Success: true, Resource: types.NewResourceView(res)})
}

// ListResources 列出或检索全部资源.
//
//	@Summary		资源列表
//	@Description	search 为逗号分隔关键字，每个关键字需命中标签、标题或描述之一
//	@Tags			资源
//	@Produce		json
//	@Param			search	query		string	false	"逗号分隔关键字"
//	@Success		200		{array}		types.ResourceView
//	@Failure		500		{object}	types.ErrorResponse
//	@Router			/api/resources [get]
func ListResources(c *gin.Context) {
	var q types.SearchQuery
	if err := bind(c, &q); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()

	list, err := service.NewResourceService(ctx).List(ctx, q.Search)
	if err != nil {
		respondError(c, err, "list resources")
		return
	}

	c.JSON(http.StatusOK, types.NewResourceViews(list))
}

// MyResources 列出调用者自己的资源.
//
//	@Summary	我的资源
//	@Tags		资源
//	@Produce	json
//	@Security	BearerAuth
//	@Param		search	query		string	false	"逗号分隔关键字"
//	@Success	200		{array}		types.ResourceView
//	@Failure	401		{object}	types.ErrorResponse
//	@Failure	500		{object}	types.ErrorResponse
//	@Router		/api/resources/my-resources [get]
func MyResources(c *gin.Context) {
	var q types.SearchQuery
	if err := bind(c, &q); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()

	list, err := service.NewResourceService(ctx).ListMine(ctx, middleware.CallerID(c), q.Search)
	if err != nil {
		respondError(c, err, "list own resources")
		return
	}

	c.JSON(http.StatusOK, types.NewResourceViews(list))
}

// GetResource 获取单个资源.
//
//	@Summary	资源详情
//	@Tags		资源
//	@Produce	json
//	@Param		id	path		string	true	"资源 ID"
//	@Success	200	{object}	types.ResourceResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/resources/{id} [get]
func GetResource(c *gin.Context) {
	ctx := c.Request.Context()

	res, err := service.NewResourceService(ctx).Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err, "get resource")
		return
	}

	c.JSON(http.StatusOK, types.ResourceResponse{Success: true, Resource: types.NewResourceView(res)})
}

// UpdateResource 所有者修改标题、描述或标签.
//
//	@Summary		修改资源
//	@Description	未提供的字段保持不变，提供 tags 时整体替换
//	@Tags			资源
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string						true	"资源 ID"
//	@Param			body	body		types.UpdateResourceRequest	true	"修改内容"
//	@Success		200		{object}	types.ResourceResponse
//	@Failure		400		{object}	types.ErrorResponse
//	@Failure		403		{object}	types.ErrorResponse
//	@Failure		404		{object}	types.ErrorResponse
//	@Router			/api/resources/{id} [put]
func UpdateResource(c *gin.Context) {
	var req types.UpdateResourceRequest

	// 绑定失败先记下，所有权检查优先于载荷校验
	bindErr := bind(c, &req)
	if errors.Is(bindErr, io.EOF) {
		// 空 body 等同于 {}
		bindErr = nil
	}

	ctx := c.Request.Context()
	svc := service.NewResourceService(ctx)

	if bindErr != nil {
		if _, err := svc.Owned(ctx, middleware.CallerID(c), c.Param("id")); err != nil {
			respondError(c, err, "update resource")
			return
		}

		badRequest(c, bindErr)

		return
	}

	res, err := svc.Update(ctx, middleware.CallerID(c), c.Param("id"), service.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		respondError(c, err, "update resource")
		return
	}

	c.JSON(http.StatusOK, types.ResourceResponse{Success: true, Resource: types.NewResourceView(res)})
}

// DeleteResource 所有者删除资源，文件删除失败不影响结果.
//
//	@Summary	删除资源
//	@Tags		资源
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"资源 ID"
//	@Success	200	{object}	types.SuccessResponse
//	@Failure	403	{object}	types.ErrorResponse
//	@Failure	404	{object}	types.ErrorResponse
//	@Router		/api/resources/{id} [delete]
func DeleteResource(c *gin.Context) {
	ctx := c.Request.Context()

	if err := service.NewResourceService(ctx).Delete(ctx, middleware.CallerID(c), c.Param("id")); err != nil {
		respondError(c, err, "delete resource")
		return
	}

	c.JSON(http.StatusOK, types.SuccessResponse{Success: true})
}

// detectContentType 表单未声明类型时按扩展名推断.
func detectContentType(declared, filename string) string {
	if ct, _, err := mime.ParseMediaType(declared); err == nil && ct != "" && ct != "application/octet-stream" {
		return ct
	}

	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		ct, _, _ = strings.Cut(ct, ";")
		return ct
	}

	return "application/octet-stream"
}
