package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// RegisterCourseRoutes mounts the gradebook endpoints of a course under api.
// Every route needs a valid token; writes additionally need a grading role.
func RegisterCourseRoutes(api *gin.RouterGroup, configs *GradeConfigHandler, grades *GradeHandler, tokens middleware.TokenValidator) {
	course := api.Group("/courses/:slug", middleware.JWT(tokens))
	writers := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin)

	course.GET("/grade-configs", configs.List)
	course.POST("/grade-configs", writers, configs.Create)
	course.GET("/grade-configs/:id", configs.Get)
	course.PUT("/grade-configs/:id", writers, configs.Update)

	course.GET("/grades", grades.Sheet)
	course.POST("/grades", writers, grades.Save)
	course.GET("/grades/export", grades.Export)
}
