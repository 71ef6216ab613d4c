package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/workspace"
)

// Handlers 汇总 /v1 下的全部处理器。
type Handlers struct {
	Editor    *EditorHandler
	Resumes   *ResumeHandler
	Exports   *ExportHandler
	Assistant *AssistantHandler
	Session   *SessionHandler
	Templates *TemplateHandler
	Ws        *WsHandler
}

// RegisterRoutes 注册 API 路由。除模板目录外的接口都绑定到设备工作区。
func RegisterRoutes(router *gin.Engine, h Handlers, registry *workspace.Registry, internalSecret string) {
	v1 := router.Group("/v1")
	v1.GET("/templates", h.Templates.List)

	scoped := v1.Group("")
	scoped.Use(middleware.WorkspaceMiddleware(registry))
	{
		scoped.GET("/ws", h.Ws.HandleConnection)

		editorGroup := scoped.Group("/editor")
		{
			editorGroup.GET("", h.Editor.Get)
			editorGroup.GET("/preview", h.Editor.Preview)
			editorGroup.PATCH("/personal-info", h.Editor.UpdatePersonalInfo)
			editorGroup.PUT("/skills", h.Editor.UpdateSkills)
			editorGroup.PUT("/hobbies", h.Editor.UpdateHobbies)
			editorGroup.PUT("/template", h.Editor.UpdateTemplate)
			editorGroup.POST("/import", h.Editor.Import)
			editorGroup.POST("/:section", h.Editor.AddEntry)
			editorGroup.PATCH("/:section/:index", h.Editor.UpdateEntry)
			editorGroup.DELETE("/:section/:index", h.Editor.RemoveEntry)
		}

		resumeGroup := scoped.Group("/resumes")
		{
			resumeGroup.GET("", h.Resumes.List)
			resumeGroup.POST("/save", h.Resumes.Save)
			resumeGroup.POST("/:id/load", h.Resumes.Load)
		}

		exportGroup := scoped.Group("/exports")
		{
			exportGroup.POST("", h.Exports.Create)
			exportGroup.GET("", h.Exports.List)
			exportGroup.GET("/download-link", h.Exports.DownloadLink)
		}

		scoped.POST("/assistant/suggest", h.Assistant.Suggest)

		sessionGroup := scoped.Group("/session")
		{
			sessionGroup.GET("", h.Session.Current)
			sessionGroup.GET("/google/start", h.Session.GoogleStart)
			sessionGroup.GET("/google/callback", h.Session.GoogleCallback)
			sessionGroup.POST("/register", h.Session.Register)
			sessionGroup.POST("/login", h.Session.Login)
			sessionGroup.POST("/restore", h.Session.Restore)
			sessionGroup.POST("/refresh", h.Session.Refresh)
			sessionGroup.POST("/logout", h.Session.Logout)
		}
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalSecretMiddleware(internalSecret))
	{
		internal.POST("/templates/previews", h.Templates.RefreshPreviews)
		internal.GET("/workspaces", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"count": registry.Len(), "devices": registry.Devices()})
		})
	}
}
