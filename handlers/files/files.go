package files

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hilla1/server/utils"
)

// Storage is the blob-store collaborator; swapped for a fake in tests.
var Storage utils.ObjectStorage = utils.NewHTTPStorage()

func UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "No file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to read file"})
		return
	}
	defer file.Close()

	stored, err := Storage.Upload(fileHeader.Filename, file)
	if err != nil {
		log.Printf("File upload failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "File upload failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "File uploaded successfully",
		"url":      stored.URL,
		"publicId": stored.PublicID,
	})
}

func DeleteFile(c *gin.Context) {
	var input struct {
		PublicID string `json:"publicId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.PublicID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Missing publicId"})
		return
	}

	if err := Storage.Delete(input.PublicID); err != nil {
		log.Printf("File delete failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Delete failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "File deleted successfully"})
}

func RenameFile(c *gin.Context) {
	var input struct {
		PublicID string `json:"publicId"`
		NewName  string `json:"newName"`
	}
	if err := c.ShouldBindJSON(&input); err != nil || input.PublicID == "" || input.NewName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "publicId and newName are required"})
		return
	}

	stored, err := Storage.Rename(input.PublicID, input.NewName)
	if err != nil {
		log.Printf("File rename failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "message": "Rename failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "File renamed successfully",
		"url":      stored.URL,
		"publicId": stored.PublicID,
	})
}

func RegisterFileRoutes(r *gin.RouterGroup) {
	r.POST("/file/upload", UploadFile)
	r.POST("/file/delete", DeleteFile)
	r.POST("/file/rename", RenameFile)
}
