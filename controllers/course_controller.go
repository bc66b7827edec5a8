// controllers/course_controller.go
package controllers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/skilltreehq/skilltree_backend/config"
	"github.com/skilltreehq/skilltree_backend/models"
)

type CourseController struct {
	db      *mongo.Database
	courses *mongo.Collection
	sales   *mongo.Collection
	redis   *redis.Client
}

func NewCourseController(db *mongo.Database, redisClient *redis.Client) *CourseController {
	return &CourseController{
		db:      db,
		courses: db.Collection("courses"),
		sales:   db.Collection("sales"),
		redis:   redisClient,
	}
}

// CreateCourse adds a new course to the catalogue. Admin only.
func (cc *CourseController) CreateCourse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CourseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Validation failed",
			Data:    err.Error(),
		})
	}

	count, err := cc.courses.CountDocuments(ctx, bson.M{"name": req.Name})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Course with this name already exists",
		})
	}

	now := time.Now()
	course := models.Course{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Status:      models.CourseActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := cc.courses.InsertOne(ctx, course); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create course",
			Data:    err.Error(),
		})
	}

	cc.invalidateCourseCache(ctx)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Course created successfully",
		Data:    course,
	})
}

// UpdateCourse modifies a course's fields. Admin only.
func (cc *CourseController) UpdateCourse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	courseID, err := parseObjectID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid course ID",
		})
	}

	var req models.UpdateCourseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	updates := bson.M{}
	if req.Name != nil && *req.Name != "" {
		updates["name"] = *req.Name
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Price must be positive",
			})
		}
		updates["price"] = *req.Price
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		if *req.Status != models.CourseActive && *req.Status != models.CourseInactive {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid status value",
			})
		}
		updates["status"] = *req.Status
	}
	if len(updates) == 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "No valid updates provided",
		})
	}
	updates["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Course
	err = cc.courses.FindOneAndUpdate(ctx, bson.M{"_id": courseID}, bson.M{"$set": updates}, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Course not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update course",
			Data:    err.Error(),
		})
	}

	cc.invalidateCourseCache(ctx)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Course updated successfully",
		Data:    updated,
	})
}

// DeleteCourse removes a course and its affiliate sale records together.
// Admin only.
func (cc *CourseController) DeleteCourse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	courseID, err := parseObjectID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid course ID",
		})
	}

	count, err := cc.courses.CountDocuments(ctx, bson.M{"_id": courseID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Database error",
		})
	}
	if count == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Course not found",
		})
	}

	if _, err := cc.sales.DeleteMany(ctx, bson.M{"courseId": courseID}); err != nil {
		log.Printf("Failed to delete sales for course %s: %v", courseID.Hex(), err)
	}
	if _, err := cc.courses.DeleteOne(ctx, bson.M{"_id": courseID}); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to delete course",
			Data:    err.Error(),
		})
	}

	cc.invalidateCourseCache(ctx)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Course deleted successfully",
	})
}

// GetAllCourses lists courses, optionally filtered by status, cached in
// Redis for an hour.
func (cc *CourseController) GetAllCourses(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := c.QueryParam("status")
	cacheKey := config.CourseCacheKey(status)

	if cc.redis != nil {
		if cached, err := cc.redis.Get(ctx, cacheKey).Result(); err == nil {
			var courses []models.Course
			if err := json.Unmarshal([]byte(cached), &courses); err == nil {
				return c.JSON(http.StatusOK, models.Response{
					Status:  http.StatusOK,
					Message: "Courses retrieved successfully",
					Data:    courses,
				})
			}
		}
	}

	filter := bson.M{}
	if status == models.CourseActive || status == models.CourseInactive {
		filter["status"] = status
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := cc.courses.Find(ctx, filter, findOpts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving courses",
			Data:    err.Error(),
		})
	}
	defer cursor.Close(ctx)

	courses := []models.Course{}
	if err := cursor.All(ctx, &courses); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error decoding courses",
		})
	}

	if cc.redis != nil {
		if payload, err := json.Marshal(courses); err == nil {
			if err := cc.redis.Set(ctx, cacheKey, payload, config.CourseCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache courses: %v", err)
			}
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Courses retrieved successfully",
		Data:    courses,
	})
}

// GetCourse returns a single course by ID.
func (cc *CourseController) GetCourse(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	courseID, err := parseObjectID(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid course ID format",
		})
	}

	var course models.Course
	err = cc.courses.FindOne(ctx, bson.M{"_id": courseID}).Decode(&course)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Course not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Error retrieving course",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Course retrieved successfully",
		Data:    course,
	})
}

func (cc *CourseController) invalidateCourseCache(ctx context.Context) {
	if cc.redis == nil {
		return
	}
	for _, key := range config.CourseCacheKeys() {
		if err := cc.redis.Del(ctx, key).Err(); err != nil {
			log.Printf("Failed to invalidate course cache %s: %v", key, err)
		}
	}
}
