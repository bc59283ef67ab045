package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"disklink/internal/model"
	"disklink/internal/repository"
	"disklink/internal/service"
)

// AdminHandler 管理接口处理器
type AdminHandler struct {
	cleanupService    service.CleanupService
	credentialService service.CredentialService
	auditRepo         repository.AuditRepository
	settingRepo       repository.SettingRepository
}

// NewAdminHandler 创建管理接口处理器
func NewAdminHandler(
	cleanupService service.CleanupService,
	credentialService service.CredentialService,
	auditRepo repository.AuditRepository,
	settingRepo repository.SettingRepository,
) *AdminHandler {
	return &AdminHandler{
		cleanupService:    cleanupService,
		credentialService: credentialService,
		auditRepo:         auditRepo,
		settingRepo:       settingRepo,
	}
}

// RunCleanup 手动触发一次过期清理
// POST /api/admin/cleanup/run
func (h *AdminHandler) RunCleanup(c *gin.Context) {
	summary, err := h.cleanupService.CleanExpiredTransfers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ServerError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, model.Success(summary))
}

// ValidateCredentials 手动触发凭证检查
// POST /api/admin/credentials/validate
func (h *AdminHandler) ValidateCredentials(c *gin.Context) {
	results := h.credentialService.ValidateAll(c.Request.Context())
	c.JSON(http.StatusOK, model.Success(results))
}

// ListLogs 分页查询操作日志
// GET /api/admin/logs
func (h *AdminHandler) ListLogs(c *gin.Context) {
	var filter model.LogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, model.BadRequest("参数错误: "+err.Error()))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	logs, total, err := h.auditRepo.List(c.Request.Context(), &filter, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ServerError("查询日志失败"))
		return
	}

	c.JSON(http.StatusOK, model.PageData(total, page, pageSize, logs))
}

// UpdateSetting 更新运行时设置
// PUT /api/admin/settings
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Value string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.BadRequest("参数错误: "+err.Error()))
		return
	}

	if err := h.settingRepo.Set(c.Request.Context(), req.Name, req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, model.ServerError("保存设置失败"))
		return
	}

	c.JSON(http.StatusOK, model.Success(nil))
}
