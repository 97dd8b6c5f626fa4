package utils

//run redis
//docker run -p 6379:6379 -d redis

//run qdrant (optional semantic answer cache)
//docker run -p 6333:6333 -p 6334:6334 -v vectorDBData:/qdrant/storage qdrant/qdrant

//run nats (optional session events)
//docker run -p 4222:4222 -d nats

//swagger init, the general api info lives on cmd/api/main.go
//swag init -g cmd/api/main.go --parseDependency --parseInternal --dir ./ --output ./cmd/api/docs

//mcp over stdio
//go run ./cmd/mcp -config config.yaml
