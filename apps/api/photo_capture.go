package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

var (
	errPhotoTooLarge    = errors.New("photo exceeds upload size limit")
	errPhotoUnsupported = errors.New("photo mime type is not supported")
	errPhotoInvalid     = errors.New("invalid photo data URL")
)

// photoDataURLFromUpload reads a multipart photo and returns it as a base64
// data URL. A nil header yields an empty string.
func photoDataURLFromUpload(fileHeader *multipart.FileHeader, maxBytes int64) (string, error) {
	if fileHeader == nil {
		return "", nil
	}
	if fileHeader.Size > maxBytes {
		return "", errPhotoTooLarge
	}

	opened, err := fileHeader.Open()
	if err != nil {
		return "", err
	}
	data, readErr := io.ReadAll(io.LimitReader(opened, maxBytes+1))
	_ = opened.Close()
	if readErr != nil {
		return "", readErr
	}
	if len(data) == 0 {
		return "", nil
	}
	if int64(len(data)) > maxBytes {
		return "", errPhotoTooLarge
	}

	mimeType := detectPhotoMimeType(data, fileHeader.Header.Get("Content-Type"))
	if mimeType == "" {
		return "", errPhotoUnsupported
	}
	return buildPhotoDataURL(mimeType, data), nil
}

func buildPhotoDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func cleanMimeType(input string) string {
	value := strings.TrimSpace(strings.ToLower(input))
	if strings.Contains(value, ";") {
		value = strings.SplitN(value, ";", 2)[0]
	}
	return value
}

func detectPhotoMimeType(data []byte, declared string) string {
	if declared != "" {
		mimeType := cleanMimeType(declared)
		if _, ok := allowedPhotoTypes[mimeType]; ok {
			return mimeType
		}
	}
	mimeType := cleanMimeType(http.DetectContentType(data))
	if _, ok := allowedPhotoTypes[mimeType]; ok {
		return mimeType
	}
	return ""
}

// validatePhotoDataURL checks a client-supplied data URL. The empty string is
// valid and means no photo.
func validatePhotoDataURL(dataURL string, maxBytes int64) error {
	if dataURL == "" {
		return nil
	}
	parts := strings.SplitN(dataURL, ",", 2)
	if len(parts) != 2 {
		return errPhotoInvalid
	}
	meta := parts[0]
	payload := parts[1]
	if !strings.HasPrefix(meta, "data:image/") || !strings.HasSuffix(meta, ";base64") {
		return errPhotoInvalid
	}
	mimeType := strings.TrimPrefix(strings.SplitN(meta, ";", 2)[0], "data:")
	if _, ok := allowedPhotoTypes[mimeType]; !ok {
		return errPhotoUnsupported
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > maxBytes+2 {
		return errPhotoTooLarge
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errPhotoInvalid, err)
	}
	if int64(len(decoded)) > maxBytes {
		return errPhotoTooLarge
	}
	return nil
}

// parseLocationFields returns a location only when both coordinates parse
// and are in range.
func parseLocationFields(rawLat, rawLon string) *ReportLocation {
	rawLat = strings.TrimSpace(rawLat)
	rawLon = strings.TrimSpace(rawLon)
	if rawLat == "" || rawLon == "" {
		return nil
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return nil
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return nil
	}
	if !isValidLocation(lat, lon) {
		return nil
	}
	return &ReportLocation{Lat: lat, Lon: lon}
}
