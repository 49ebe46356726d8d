package core

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, authService AuthService, tokens *TokenManager, users UserRepository, throttle *LoginThrottle, metrics *AuthMetrics) *gin.Engine {
	r := gin.Default()

	r.Use(OriginMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
				return
			}

			ctx := c.Request.Context()
			blocked, err := throttle.TooMany(ctx, req.Username, c.ClientIP())
			if err != nil {
				// Throttle storage trouble must not lock everyone out.
				log.Printf("login throttle check failed: %v", err)
			}
			if blocked {
				respondError(c, http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS", "ログイン試行が多すぎます。しばらく待ってから再度お試しください。")
				return
			}

			token, user, err := authService.Login(req.Username, req.Password)
			if err != nil {
				if err := throttle.RecordFailure(ctx, req.Username, c.ClientIP()); err != nil {
					log.Printf("failed to record login failure: %v", err)
				}
				if err := metrics.IncrLoginFailure(ctx); err != nil {
					log.Printf("failed to update login metrics: %v", err)
				}
				switch {
				case errors.Is(err, ErrUserNotFound):
					respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "ユーザーが見つかりません")
				case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrPasswordNotSet):
					respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "ユーザーIDまたはパスワードが違います。")
				default:
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "login failed")
				}
				return
			}

			if err := throttle.Reset(ctx, req.Username, c.ClientIP()); err != nil {
				log.Printf("failed to reset login throttle: %v", err)
			}
			if err := metrics.IncrLoginSuccess(ctx); err != nil {
				log.Printf("failed to update login metrics: %v", err)
			}

			c.JSON(http.StatusOK, gin.H{
				"token": token,
				"user": gin.H{
					"id":         user.ID,
					"username":   user.Username,
					"role":       user.Role,
					"created_at": user.CreatedAt,
				},
			})
		})

		protected := api.Group("/users")
		protected.Use(RequireAuth(tokens))
		{
			protected.GET("/me", func(c *gin.Context) {
				identity, ok := CurrentIdentity(c)
				if !ok {
					respondUnauthenticated(c)
					return
				}
				u, err := users.FindByID(c.Request.Context(), identity.UserID)
				if err != nil {
					respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "ユーザーが存在しません")
					return
				}
				c.JSON(http.StatusOK, gin.H{
					"id":         u.ID,
					"username":   u.Username,
					"role":       u.Role,
					"created_at": u.CreatedAt,
				})
			})

			protected.GET("", func(c *gin.Context) {
				page, perPage, err := parsePagination(c.Query("page"), c.Query("per_page"))
				if err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
					return
				}
				items, total, err := users.List(c.Request.Context(), page, perPage)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to fetch users")
					return
				}
				c.JSON(http.StatusOK, gin.H{
					"items":       items,
					"page":        page,
					"per_page":    perPage,
					"total_items": total,
					"total_pages": calcTotalPages(total, perPage),
				})
			})

			protected.POST("", func(c *gin.Context) {
				var req struct {
					Username string `json:"username"`
					Password string `json:"password"`
					Role     string `json:"role"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
					return
				}
				req.Username = strings.TrimSpace(req.Username)
				req.Role = strings.TrimSpace(req.Role)
				if req.Username == "" || req.Password == "" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username and password are required")
					return
				}
				if req.Role == "" {
					req.Role = "user"
				}
				if req.Role != "user" && req.Role != "admin" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
					return
				}

				if _, err := authService.Register(req.Username, req.Password, req.Role); err != nil {
					// naive duplicate detection
					if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
						respondError(c, http.StatusConflict, "CONFLICT", "username already exists")
						return
					}
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
					return
				}

				ctx := c.Request.Context()
				if err := metrics.IncrRegistered(ctx); err != nil {
					log.Printf("failed to update register metrics: %v", err)
				}

				// created_at を含むレスポンスを返すために再取得
				record, err := users.FindByUsername(ctx, req.Username)
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load created user")
					return
				}

				c.JSON(http.StatusCreated, gin.H{
					"id":         record.ID,
					"username":   record.Username,
					"role":       record.Role,
					"created_at": record.CreatedAt,
				})
			})

			protected.GET("/:id", func(c *gin.Context) {
				id, err := strconv.ParseInt(c.Param("id"), 10, 64)
				if err != nil || id <= 0 {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
					return
				}
				u, err := users.FindByID(c.Request.Context(), id)
				if err != nil {
					respondError(c, http.StatusNotFound, "NOT_FOUND", "ユーザーが見つかりません")
					return
				}
				c.JSON(http.StatusOK, gin.H{
					"id":         u.ID,
					"username":   u.Username,
					"role":       u.Role,
					"created_at": u.CreatedAt,
				})
			})

			protected.PATCH("/:id", func(c *gin.Context) {
				id, err := strconv.ParseInt(c.Param("id"), 10, 64)
				if err != nil || id <= 0 {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
					return
				}
				var req struct {
					Username *string `json:"username"`
					Password *string `json:"password"`
					Role     *string `json:"role"`
				}
				if err := c.ShouldBindJSON(&req); err != nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid json")
					return
				}
				if req.Username == nil && req.Password == nil && req.Role == nil {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username, password, role のいずれかを指定してください")
					return
				}

				input := UserUpdateInput{Username: req.Username, Role: req.Role}
				if req.Username != nil && strings.TrimSpace(*req.Username) == "" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "username must not be empty")
					return
				}
				if req.Role != nil && *req.Role != "user" && *req.Role != "admin" {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid role")
					return
				}
				if req.Password != nil {
					if *req.Password == "" {
						respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must not be empty")
						return
					}
					hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
					if err != nil {
						respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to hash password")
						return
					}
					hashStr := string(hash)
					input.PasswordHash = &hashStr
				}

				if err := users.Update(c.Request.Context(), id, input); err != nil {
					if errors.Is(err, ErrNoRows) {
						respondError(c, http.StatusNotFound, "NOT_FOUND", "ユーザーが見つかりません")
						return
					}
					if strings.Contains(err.Error(), "duplicate") || strings.Contains(err.Error(), "unique") {
						respondError(c, http.StatusConflict, "CONFLICT", "username already exists")
						return
					}
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to update user")
					return
				}
				c.Status(http.StatusNoContent)
			})

			protected.DELETE("/:id", func(c *gin.Context) {
				id, err := strconv.ParseInt(c.Param("id"), 10, 64)
				if err != nil || id <= 0 {
					respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid id")
					return
				}
				if err := users.Delete(c.Request.Context(), id); err != nil {
					if errors.Is(err, ErrNoRows) {
						respondError(c, http.StatusNotFound, "NOT_FOUND", "ユーザーが見つかりません")
						return
					}
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to delete user")
					return
				}
				c.Status(http.StatusNoContent)
			})
		}

		admin := api.Group("/admin")
		admin.Use(RequireAuth(tokens), AdminOnly(users))
		{
			admin.GET("/metrics/auth", func(c *gin.Context) {
				overview, err := metrics.Overview(c.Request.Context())
				if err != nil {
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load metrics")
					return
				}
				c.JSON(http.StatusOK, overview)
			})
		}
	}

	return r
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

func parsePagination(pageStr, perPageStr string) (int, int, error) {
	page := 1
	perPage := defaultPerPage
	if strings.TrimSpace(pageStr) != "" {
		p, err := strconv.Atoi(pageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("page は 1 以上の整数で指定してください")
		}
		page = p
	}
	if strings.TrimSpace(perPageStr) != "" {
		p, err := strconv.Atoi(perPageStr)
		if err != nil || p <= 0 {
			return 0, 0, errors.New("per_page は 1 以上の整数で指定してください")
		}
		if p > maxPerPage {
			p = maxPerPage
		}
		perPage = p
	}
	return page, perPage, nil
}

func calcTotalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}
