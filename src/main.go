package main

import (
	"esn/src/config"
	"esn/src/db"
	"esn/src/issuer"
	"esn/src/middlewares"
	"esn/src/models"
	"esn/src/types"
	"io"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	apiPrefix string = "/api/v1"
)

// accepts local formats (98XXXXXXXX) and the +977 country prefix
var nepaliPhoneRe = regexp.MustCompile(`^(\+977[- ]?)?9[678]\d{8}$`)

func nepaliPhone(fl validator.FieldLevel) bool {
	return nepaliPhoneRe.MatchString(fl.Field().String())
}

func setupRouter() *gin.Engine {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("nepaliphone", nepaliPhone); err != nil {
			log.Printf("Error registering phone validation: %s\n", err.Error())
		}
	}
	router := gin.Default()
	router.Use(middlewares.RequestIDMiddleware())
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	return g.Group(apiPrefix)
}

func initLogger() {
	cwd, _ := os.Getwd()
	serverLogs := path.Join(cwd, "logs", "server.log")
	apiLogs := path.Join(cwd, "logs", "api.log")
	gin.ForceConsoleColor()

	f, _ := os.Create(apiLogs)
	gin.DefaultWriter = io.MultiWriter(f, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   serverLogs,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if config.Env() == types.Local {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}
	initLogger()

	d := db.GetDb()
	if err := d.AutoMigrate(
		&models.Event{},
		&models.TicketRequest{},
	); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	iss := issuer.GetIssuer()
	iss.Start()
	if err := iss.StartSweeper(); err != nil {
		log.Printf("Error starting issuance sweeper: %s\n", err.Error())
	}
	defer iss.Close()

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if config.Env() == types.Local {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Content-Type")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	ticketRequestRoutes(router)
	paymentRoutes(router)

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Error starting server: %s\n", err.Error())
	}
}
