package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"regexp"
	"strings"

	"field-service-system/pkg/database"
	"field-service-system/pkg/middleware"
	"field-service-system/pkg/response"
	"field-service-system/services/auth-service/models"
	"field-service-system/services/auth-service/utils"

	"gorm.io/gorm"
)

type app struct {
	db        *gorm.DB
	jwtSecret []byte
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

func isValidPassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters"
	}
	if len(password) > 100 {
		return false, "Password too long"
	}
	return true, ""
}

func isValidRole(role string) bool {
	return role == middleware.RoleAdmin || role == middleware.RoleTechnician
}

func jwtSecretFromEnv() []byte {
	if v := strings.TrimSpace(os.Getenv("JWT_SECRET")); v != "" {
		return []byte(v)
	}
	return []byte("SUPER_SECRET_KEY_CHANGE_ME")
}

func main() {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("POSTGRES_HOST"),
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
		os.Getenv("POSTGRES_PORT"),
	)
	if os.Getenv("POSTGRES_HOST") == "" {
		dsn = "host=localhost user=admin password=password dbname=auth_db port=5432 sslmode=disable TimeZone=UTC"
	}

	db, err := database.ConnectPostgres(dsn)
	if err != nil {
		log.Fatalf("[ERROR] Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.User{}); err != nil {
		log.Fatalf("[ERROR] Migration failed: %v", err)
	}
	log.Println("[OK] Migration success")

	a := &app{db: db, jwtSecret: jwtSecretFromEnv()}
	auth := middleware.Auth(a.jwtSecret)

	http.HandleFunc("/api/auth/register", middleware.Trace(middleware.Logger(a.registerHandler)))
	http.HandleFunc("/api/auth/login", middleware.Trace(middleware.Logger(a.loginHandler)))
	http.HandleFunc("/api/auth/me", middleware.Trace(middleware.Logger(auth(a.meHandler))))
	http.HandleFunc("/health", a.healthCheckHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}
	log.Printf("[INFO] Auth Service running on port :%s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("[ERROR] Server failed: %v", err)
	}
}

func (a *app) registerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
		Phone    string `json:"phone"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	if input.Email == "" || input.Password == "" || input.Name == "" {
		response.Error(w, http.StatusBadRequest, "Email, Password, and Name are required", "")
		return
	}
	if !isValidEmail(input.Email) {
		response.Error(w, http.StatusBadRequest, "Invalid email format", "")
		return
	}
	if valid, msg := isValidPassword(input.Password); !valid {
		response.Error(w, http.StatusBadRequest, msg, "")
		return
	}
	if len(strings.TrimSpace(input.Name)) < 3 {
		response.Error(w, http.StatusBadRequest, "Name must be at least 3 characters", "")
		return
	}

	role := input.Role
	if role == "" {
		role = middleware.RoleTechnician
	}
	if !isValidRole(role) {
		response.Error(w, http.StatusBadRequest, "Role must be admin or technician", "")
		return
	}

	var existingUser models.User
	if result := a.db.Where("email = ?", input.Email).First(&existingUser); result.Error == nil {
		log.Printf("[WARN] Registration attempt with existing email")
		response.Error(w, http.StatusConflict, "Email already registered", "")
		return
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		log.Printf("[ERROR] Failed to hash password: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to process registration", "")
		return
	}

	newUser := models.User{
		Email:    input.Email,
		Password: hashedPassword,
		Name:     strings.TrimSpace(input.Name),
		Phone:    input.Phone,
		Role:     role,
	}

	if err := a.db.Create(&newUser).Error; err != nil {
		log.Printf("[ERROR] Failed to save user to database: %v", err)
		response.Error(w, http.StatusInternalServerError, "Failed to save user", "")
		return
	}

	log.Printf("[OK] User registered - ID: %s, Role: %s", newUser.ID, newUser.Role)

	token, err := utils.GenerateJWT(a.jwtSecret, newUser.ID, newUser.Email, newUser.Name, newUser.Role)
	if err != nil {
		log.Printf("[ERROR] Failed to generate JWT for user id: %s", newUser.ID)
		response.Error(w, http.StatusInternalServerError, "Failed to generate token", "")
		return
	}

	response.Success(w, http.StatusCreated, "User registered successfully", map[string]interface{}{
		"id":    newUser.ID,
		"token": token,
		"name":  newUser.Name,
		"role":  newUser.Role,
	})
}

func (a *app) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.Error(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request payload", "")
		return
	}

	if input.Email == "" || input.Password == "" {
		response.Error(w, http.StatusBadRequest, "Email and Password are required", "")
		return
	}

	var user models.User
	if err := a.db.Where("email = ?", input.Email).First(&user).Error; err != nil {
		log.Printf("[WARN] Failed login attempt")
		response.Error(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}

	if !utils.CheckPasswordHash(input.Password, user.Password) {
		log.Printf("[WARN] Invalid password attempt")
		response.Error(w, http.StatusUnauthorized, "Invalid email or password", "")
		return
	}

	token, err := utils.GenerateJWT(a.jwtSecret, user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		log.Printf("[ERROR] Failed to generate JWT for user id: %s", user.ID)
		response.Error(w, http.StatusInternalServerError, "Failed to generate token", "")
		return
	}

	log.Printf("[OK] User logged in - ID: %s, Role: %s", user.ID, user.Role)

	response.Success(w, http.StatusOK, "Login successful", map[string]interface{}{
		"id":    user.ID,
		"token": token,
		"name":  user.Name,
		"role":  user.Role,
	})
}

func (a *app) meHandler(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r)
	if !ok {
		response.Error(w, http.StatusInternalServerError, "Failed to retrieve user context", "")
		return
	}

	var user models.User
	if err := a.db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		response.Error(w, http.StatusNotFound, "User not found", "")
		return
	}

	response.Success(w, http.StatusOK, "User profile fetched", user)
}

func (a *app) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "UP",
		"service": "auth-service",
	}

	sqlDB, err := a.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		health["status"] = "DOWN"
		health["database"] = "disconnected"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		health["database"] = "connected"
		w.WriteHeader(http.StatusOK)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}
