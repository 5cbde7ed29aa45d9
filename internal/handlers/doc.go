// Package handlers implements the HTTP API: conversion triggers,
// variant selection, lifecycle management, statistics, and service
// health. Handlers translate between HTTP and the engine; they hold no
// conversion logic of their own.
package handlers
