package store

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"

	"golang.org/x/xerrors"
)

// encodePayload serializes a payload for size estimation, compression and persistence
func encodePayload[T any](value T) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode payload: %w", err)
	}
	return encoded, nil
}

// decodePayload deserializes an encoded payload
func decodePayload[T any](encoded []byte) (T, error) {
	var value T
	err := json.Unmarshal(encoded, &value)
	if err != nil {
		return value, xerrors.Errorf("failed to decode payload: %w", err)
	}
	return value, nil
}

// compressPayload compresses an encoded payload with gzip
func compressPayload(encoded []byte) ([]byte, error) {
	buffer := bytes.Buffer{}

	gzipWriter := gzip.NewWriter(&buffer)
	_, err := gzipWriter.Write(encoded)
	if err != nil {
		gzipWriter.Close()
		return nil, xerrors.Errorf("failed to compress payload: %w", err)
	}

	err = gzipWriter.Close()
	if err != nil {
		return nil, xerrors.Errorf("failed to compress payload: %w", err)
	}

	return buffer.Bytes(), nil
}

// decompressPayload decompresses a gzip compressed payload
func decompressPayload(compressed []byte) ([]byte, error) {
	gzipReader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, xerrors.Errorf("failed to decompress payload: %w", err)
	}
	defer gzipReader.Close()

	encoded, err := io.ReadAll(gzipReader)
	if err != nil {
		return nil, xerrors.Errorf("failed to decompress payload: %w", err)
	}

	return encoded, nil
}
